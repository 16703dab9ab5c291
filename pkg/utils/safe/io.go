package safe

import (
	"context"
	"encoding/json"
	"io"

	"github.com/secmon-lab/citadel/pkg/utils/logging"
)

// Close closes closer and logs a failure. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Warn("close failed", "error", err.Error())
	}
}

// WriteJSON encodes v to w and logs a failure. Used after the status line is already sent.
func WriteJSON(ctx context.Context, w io.Writer, v any) {
	if w == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("encode response failed", "error", err.Error())
	}
}
