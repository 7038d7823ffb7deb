package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ZerologGorm routes GORM's logging through zerolog. Queries slower than
// SlowThreshold are logged at warn; failures (other than record-not-found)
// at error; everything else at trace when the level allows it.
type ZerologGorm struct {
	Log           zerolog.Logger
	SlowThreshold time.Duration
	level         logger.LogLevel
}

// NewZerologGorm returns a GORM logger writing to l at warn level.
func NewZerologGorm(l zerolog.Logger, slow time.Duration) *ZerologGorm {
	return &ZerologGorm{Log: l, SlowThreshold: slow, level: logger.Warn}
}

func (z *ZerologGorm) LogMode(level logger.LogLevel) logger.Interface {
	cp := *z
	cp.level = level
	return &cp
}

func (z *ZerologGorm) Info(_ context.Context, msg string, args ...any) {
	if z.level >= logger.Info {
		z.Log.Info().Msgf(msg, args...)
	}
}

func (z *ZerologGorm) Warn(_ context.Context, msg string, args ...any) {
	if z.level >= logger.Warn {
		z.Log.Warn().Msgf(msg, args...)
	}
}

func (z *ZerologGorm) Error(_ context.Context, msg string, args ...any) {
	if z.level >= logger.Error {
		z.Log.Error().Msgf(msg, args...)
	}
}

func (z *ZerologGorm) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && z.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		z.Log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query failed")
	case z.SlowThreshold > 0 && elapsed > z.SlowThreshold && z.level >= logger.Warn:
		sql, rows := fc()
		z.Log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case z.level >= logger.Info:
		sql, rows := fc()
		z.Log.Trace().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query")
	}
}
