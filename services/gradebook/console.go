package gradebooksvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
)

// SavedScheme is a scheme handed to a ConsoleSaver.
type SavedScheme struct {
	ClassID string
	Scheme  scheme.Persistable
}

// ConsoleSaver prints saved schemes instead of sending them to a gradebook. Used in development.
type ConsoleSaver struct {
	out           io.Writer
	disableOutput bool

	mu    sync.Mutex
	saved []SavedScheme
}

var _ scheme.Saver = (*ConsoleSaver)(nil)

func NewConsoleSaver() *ConsoleSaver {
	return &ConsoleSaver{out: os.Stdout}
}

// NewConsoleSaverMock records saved schemes without printing them.
func NewConsoleSaverMock() *ConsoleSaver {
	return &ConsoleSaver{out: io.Discard, disableOutput: true}
}

func (svc *ConsoleSaver) SaveScheme(_ context.Context, sess core.Session, classID string, p scheme.Persistable) error {
	if !svc.disableOutput {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encoding scheme")
		}
		_, _ = fmt.Fprintf(svc.out, "Grading scheme of class %q (request %q):\n%s\n", classID, sess.RequestID, data)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.saved = append(svc.saved, SavedScheme{ClassID: classID, Scheme: p})
	return nil
}

// Saved returns the schemes saved so far, oldest first.
func (svc *ConsoleSaver) Saved() []SavedScheme {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]SavedScheme(nil), svc.saved...)
}

// Reset forgets the saved schemes.
func (svc *ConsoleSaver) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.saved = nil
}
