// Package numerator assigns human-readable document numbers (FAC-2026-00001)
// backed by the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for a call, typically the transaction carried by ctx.
type QuerierFunc func(ctx context.Context) Querier

// Service provides document numbering functionality. Every number bumps
// the sequence row inside the caller's transaction, so numbers have no gaps.
type Service struct {
	querier QuerierFunc
}

// NewWithQuerierFunc creates a numerator that resolves its querier per call,
// so numbers are drawn inside the caller's transaction.
func NewWithQuerierFunc(fn QuerierFunc) *Service {
	return &Service{querier: fn}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "FAC")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// GetNextNumber generates the next document number.
// Pattern: PREFIX-YEAR-XXXXX (e.g., FAC-2026-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, buildKey(cfg, period)).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number: %w", err)
	}

	return formatNumber(cfg, period, num), nil
}

// SetLastNumber records value as the last number issued for period, so the
// next GetNextNumber returns value+1. Used when taking over numbering from
// another system.
func (s *Service) SetLastNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, buildKey(cfg, period), value).Scan(&result)
	if err != nil {
		return fmt.Errorf("set last number: %w", err)
	}
	return nil
}

// buildKey creates the sequence key based on config and period.
func buildKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

// formatNumber creates the final number string.
func formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the sequence value of a number formatted with cfg for
// period. Returns -1 if formatted does not follow that pattern.
func ParseNumber(cfg Config, period time.Time, formatted string) int64 {
	head := cfg.Prefix + "-"
	if cfg.IncludeYear {
		head += period.Format("2006") + "-"
	}
	rest, ok := strings.CutPrefix(formatted, head)
	if !ok {
		return -1
	}
	num, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || num < 0 {
		return -1
	}
	return num
}
