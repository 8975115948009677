package logger

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Messages carries every encoded log entry, consumers are the log view or the stdout printer.
var Messages = make(chan []byte, 256)

// Dropped counts entries discarded because nobody was draining Messages fast enough.
var Dropped = atomic.NewUint64(0)

const (
	ErrorLvl    = 0
	WarningLvl  = 1
	InfoLvl     = 2
	ModeLvl     = 3
	ReadingsLvl = 4

	DebugLvl = 9
)

var (
	Error    = zap.Int("level", ErrorLvl)
	Warning  = zap.Int("level", WarningLvl)
	Info     = zap.Int("level", InfoLvl)
	Mode     = zap.Int("level", ModeLvl)
	Readings = zap.Int("level", ReadingsLvl)

	Debug = zap.Int("level", DebugLvl)
)

type chanWriter struct {
	sync.Mutex
}

func (w *chanWriter) Write(p []byte) (n int, err error) {
	w.Lock()
	defer w.Unlock()
	var newSlice = make([]byte, len(p))
	copy(newSlice, p)
	select {
	case Messages <- newSlice:
	default:
		Dropped.Inc()
	}
	return len(p), nil
}

func (w *chanWriter) Sync() error {
	return nil
}

var (
	once   sync.Once
	shared *zap.Logger
)

// GetLogger returns the process-wide logger, every package keeps it in a package level `log` variable.
func GetLogger() *zap.Logger {
	once.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.SkipLineEnding = true
		cfg.EncodeTime = zapcore.EpochNanosTimeEncoder
		cfg.LevelKey = ""
		encoder := zapcore.NewJSONEncoder(cfg)

		shared = zap.New(
			zapcore.NewCore(encoder, zapcore.Lock(&chanWriter{}), zap.DebugLevel),
			zap.AddCaller(),
		)
	})
	return shared
}
