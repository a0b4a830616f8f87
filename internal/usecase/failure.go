package usecase

import (
	"errors"
	"regexp"
	"strings"

	"newstack/internal/domain"
)

const (
	msgNetwork          = "Network issue: check your connection and retry in 5 minutes."
	msgRateLimited      = "Too many requests: please wait 5 minutes before retrying."
	msgConnectionClosed = "Connection closed before a response arrived; the ingestion may have completed on the server."
	msgUnexpected       = "Unexpected error: please try again in 5 minutes."
)

var limitWord = regexp.MustCompile(`\blimit(s|ed)?\b`)

// DescribeFailure maps a run failure onto a kind and a user-readable hint.
// Typed remote errors are switched on directly; untyped errors and remote
// errors of unknown kind fall back to matching the error text.
func DescribeFailure(err error) (domain.ErrorKind, string) {
	if err == nil {
		return "", ""
	}

	var kind domain.ErrorKind
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		kind = remote.Kind
		if kind == "" || kind == domain.ErrorUnknown {
			kind = guessKind(remoteText(remote))
		}
	} else {
		kind = guessKind(err.Error())
	}

	switch kind {
	case domain.ErrorNetwork:
		return kind, msgNetwork
	case domain.ErrorRateLimited:
		return kind, msgRateLimited
	case domain.ErrorConnectionClosed:
		return kind, msgConnectionClosed
	default:
		return kind, msgUnexpected
	}
}

func remoteText(remote *domain.RemoteError) string {
	if remote.Message != "" {
		return remote.Message
	}
	if remote.Err != nil {
		return remote.Err.Error()
	}
	return ""
}

// TODO: drop once the catalog adapter reports typed errors as well.
func guessKind(message string) domain.ErrorKind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "timeout"), strings.Contains(m, "timed out"), strings.Contains(m, "network"), strings.Contains(m, "failed to fetch"):
		return domain.ErrorNetwork
	case strings.Contains(m, "rate limit"), strings.Contains(m, "rate-limit"), strings.Contains(m, "too many"),
		strings.Contains(m, "429"), limitWord.MatchString(m):
		return domain.ErrorRateLimited
	case strings.Contains(m, "connection closed"):
		return domain.ErrorConnectionClosed
	default:
		return domain.ErrorUnknown
	}
}
