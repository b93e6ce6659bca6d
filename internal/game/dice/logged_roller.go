package dice

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Roller wraps a Source and logger to provide logged dice rolling.
// All rolls are logged at debug level with a roll id, expression, dice values,
// modifier, and total.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the Source the Roller draws from.
func (r *Roller) Source() Source { return r.src }

// Roll evaluates expr and logs the result at debug level.
//
// Precondition: expr must come from Parse.
func (r *Roller) Roll(expr Expression) RollResult {
	result := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("roll_id", uuid.NewString()),
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}

// RollExpr parses expr and rolls it, logging the result.
//
// Postcondition: Returns a RollResult or a parse error; rejected notation is
// logged at debug level.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		r.logger.Debug("dice expression rejected",
			zap.String("expression", expr),
			zap.Error(err),
		)
		return RollResult{}, err
	}
	return r.Roll(e), nil
}

// RollInline expands every dice span in text using the Roller's Source.
func (r *Roller) RollInline(text string) (string, error) {
	out, err := RollInline(text, r.src)
	if err != nil {
		return "", err
	}
	if out != text {
		r.logger.Debug("inline dice expanded",
			zap.String("input", text),
			zap.String("output", out),
		)
	}
	return out, nil
}
