package evaluator

import (
	"encoding/json"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/schema"
)

// DecodeVerdict checks raw JSON against the verdict schema and decodes it.
func DecodeVerdict(raw []byte) (domain.TurnVerdict, error) {
	if err := schema.ValidateVerdict(raw); err != nil {
		return domain.TurnVerdict{}, &domain.SchemaError{Reason: err.Error()}
	}
	var v domain.TurnVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.TurnVerdict{}, &domain.SchemaError{Reason: err.Error()}
	}
	return v, nil
}
