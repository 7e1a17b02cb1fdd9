package cmd

import (
	"fmt"
	"io"
	"os"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// osExit is replaced in tests.
var osExit = os.Exit

// ExitWithCode logs err with the foundry exit-code metadata and exits.
// A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		osExit(int(exitCode))
		return
	}

	logger.Error(msg, exitFields(info.Code, info.Name, info.Category, err)...)
	osExit(info.Code)
}

// ExitWithCodeStderr is used before a logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	osExit(writeFatal(os.Stderr, exitCode, msg, err))
}

func exitFields(code int, name, category string, err error) []zap.Field {
	fields := []zap.Field{
		zap.Int("exit_code", code),
		zap.String("exit_name", name),
		zap.String("exit_category", category),
	}

	if envelope, ok := err.(*gferrors.ErrorEnvelope); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}

	return append(fields, zap.Error(err))
}

// writeFatal prints the failure and returns the process exit code.
func writeFatal(w io.Writer, exitCode foundry.ExitCode, msg string, err error) int {
	switch envelope, isEnvelope := err.(*gferrors.ErrorEnvelope); {
	case isEnvelope:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if original, ok := envelope.Original.(error); ok {
			fmt.Fprintf(w, "Underlying error: %v\n", original)
		}
	case err != nil:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	default:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		return int(exitCode)
	}
	fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	return info.Code
}
