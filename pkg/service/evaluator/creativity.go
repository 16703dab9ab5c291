package evaluator

import (
	"context"
	"regexp"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
)

// NeutralCreativity is applied when the judge reply cannot be parsed
const NeutralCreativity = 0.5

// DefaultRubric asks the judge for a single number in [0,1]
const DefaultRubric = `You are grading a short in-universe narration written in the voice of a sarcastic Rick & Morty narrator.
Rate its creativity: originality of phrasing, wit, and how unmistakably it sounds like the show.
0.0 means bland and generic, 1.0 means inventive, funny and fully in voice.
Reply with a single number between 0.0 and 1.0 and nothing else.`

var numberPattern = regexp.MustCompile(`-?(?:\d+(?:\.\d+)?|\.\d+)`)

// parseJudgeReply extracts the first number of the reply, clamped to [0,1]
func parseJudgeReply(reply string) (float64, error) {
	m := numberPattern.FindString(reply)
	if m == "" {
		return 0, goerr.Wrap(model.ErrMalformedJudgeResponse, "no number in judge reply", goerr.V("reply", reply))
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, goerr.Wrap(model.ErrMalformedJudgeResponse, "invalid number in judge reply",
			goerr.V("reply", reply), goerr.V("error", err.Error()))
	}
	return model.Clamp01(v), nil
}

func (e *Evaluator) creativityScore(ctx context.Context, text string) (model.Score, error) {
	reply, err := e.judge.Judge(ctx, text, e.rubric)
	if err != nil {
		return model.PendingScore(), goerr.Wrap(err, "failed to get creativity judgment")
	}

	v, err := parseJudgeReply(reply)
	if err != nil {
		logging.From(ctx).Warn("judge reply unparsable, using neutral creativity",
			"error", err,
			"reply", reply,
			"neutral", NeutralCreativity,
		)
		return model.FallbackScore(NeutralCreativity), nil
	}
	return model.Scored(v), nil
}
