package evaluator

var (
	CountContradictions = countContradictions
	FactualScore        = factualScore
	CompletenessScore   = completenessScore
	RelevanceScore      = relevanceScore
	ParseJudgeReply     = parseJudgeReply
	SplitSentences      = splitSentences
)
