package cli

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tunnelward/tunnelward/internal/events"
	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/store"
)

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func sessionLogPath(paths store.Paths, profileName string) string {
	return filepath.Join(paths.LogsDir(), store.SanitizeName(profileName)+".log")
}

func journalQuery(profileName string, limit int) events.Query {
	return events.Query{ProfileName: profileName, Limit: limit}
}

func eventDetail(e model.Event) string {
	switch e.Type {
	case model.EventStatusChanged:
		return fmt.Sprintf("%s → %s", e.OldStatus, e.NewStatus)
	case model.EventReconnecting:
		return fmt.Sprintf("attempt %d/%d", e.Attempt, e.MaxAttempts)
	case model.EventDisconnected:
		return e.Reason
	case model.EventFailed:
		return e.Error
	case model.EventOutput:
		return e.Output
	case model.EventSSHBinaryChanged:
		return e.Path + " " + e.Version
	case model.EventError:
		return e.Message
	default:
		return e.ProfileName
	}
}
