package usecase

// ExtractSnippet is exported for testing
var ExtractSnippet = extractSnippet

// CapWords is exported for testing
var CapWords = capWords

// TruncateRunes is exported for testing
var TruncateRunes = truncateRunes

// BuildSummaryPrompt is exported for testing
var BuildSummaryPrompt = buildSummaryPrompt
