package output

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	SetLogOutput(os.Stderr)
}

func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func SetLogOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// heldWriter keeps log output away from the terminal while bars are being
// drawn and releases it once the display has stopped.
type heldWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	release io.Writer
	held    bool
}

func newHeldWriter(release io.Writer) *heldWriter {
	return &heldWriter{release: release, held: true}
}

func (h *heldWriter) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.held {
		return h.release.Write(p)
	}
	return h.buf.Write(p)
}

func (h *heldWriter) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.held = false
	_, err := h.buf.WriteTo(h.release)
	return err
}
