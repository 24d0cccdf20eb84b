package jobs

import (
	"context"
	"fmt"
	"strconv"

	"jobscout-engine/internal/domain"
)

// ListCSV serves the listing from the CSV export instead of the database.
// Missing values come back as "" and the usual cap applies.
func (s *Service) ListCSV(ctx context.Context, filters map[string]string) ([]map[string]any, error) {
	if s.export == nil {
		return nil, fmt.Errorf("csv export: %w", domain.ErrNotFound)
	}
	rows, err := s.export.Rows(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, min(len(rows), MaxListed))
	for _, r := range rows {
		if !matches(r, filters) {
			continue
		}
		m := make(map[string]any, len(r))
		for k, v := range r {
			if v == nil {
				v = ""
			}
			m[k] = v
		}
		out = append(out, m)
		if len(out) == MaxListed {
			break
		}
	}
	return out, nil
}

func matches(r domain.RawRow, filters map[string]string) bool {
	for k, want := range filters {
		if cellString(r[k]) != want {
			return false
		}
	}
	return true
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}
