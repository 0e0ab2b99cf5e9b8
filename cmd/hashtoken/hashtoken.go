package hashtoken

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"cfdpaper/src/security"

	"github.com/sirupsen/logrus"
)

// HashToken prints the bcrypt hash of an internal token for INTERNAL_TOKEN_HASH.
// The token comes from Token or, when that is empty, the first line of In.
type HashToken struct {
	Log   *logrus.Entry
	Token string
	In    io.Reader
	Out   io.Writer
}

func (h *HashToken) Start() error {
	token := strings.TrimSpace(h.Token)
	if token == "" && h.In != nil {
		line, err := bufio.NewReader(h.In).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	hashed, err := security.HashToken(token)
	if err != nil {
		h.Log.WithError(err).Error("Failed to hash token")
		return err
	}
	_, err = fmt.Fprintln(h.Out, hashed)
	return err
}
