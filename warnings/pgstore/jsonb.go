package pgstore

import (
	"database/sql/driver"
	"fmt"

	"github.com/bytedance/sonic"
)

// jsonb stores V in a JSONB column.
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	data, err := sonic.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("pgstore: encode jsonb: %w", err)
	}
	return data, nil
}

func (j *jsonb[T]) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		var zero T
		j.V = zero
		return nil
	default:
		return fmt.Errorf("pgstore: cannot scan %T into jsonb", src)
	}
	if err := sonic.Unmarshal(data, &j.V); err != nil {
		return fmt.Errorf("pgstore: decode jsonb: %w", err)
	}
	return nil
}
