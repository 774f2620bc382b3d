package runner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fenrig-labs/gptshell/internal/chat"
)

func TestExitCodeForToolApprovalDenied(t *testing.T) {
	err := chat.ErrToolApprovalDenied{Server: "shell", Tool: "execute"}
	require.Equal(t, ExitToolApprovalDenied, exitCodeFor(err))
}

func TestExitCodeForDeadlineExceeded(t *testing.T) {
	require.Equal(t, ExitTimeout, exitCodeFor(context.DeadlineExceeded))
}

func TestExitCodeForCanceled(t *testing.T) {
	require.Equal(t, ExitInterrupt, exitCodeFor(context.Canceled))
}

func TestExitCodeForOtherError(t *testing.T) {
	require.Equal(t, ExitOther, exitCodeFor(errors.New("boom")))
}

func TestTextRendererPrintsOnlyCompleteLines(t *testing.T) {
	var out bytes.Buffer
	r := NewTextRenderer(&out, nil)
	r.Push("hello wor")
	require.Empty(t, out.String())
	r.Push("ld\nnext")
	require.Equal(t, "hello world\n", out.String())
	r.Flush()
	require.Equal(t, "hello world\nnext", out.String())
}

func TestMarkdownRendererHoldsFenceUntilClosed(t *testing.T) {
	var out bytes.Buffer
	r := NewMarkdownRenderer(&out, nil, nil)
	r.Push("before\n\n```go\ncode\n")
	require.Contains(t, out.String(), "before")
	require.NotContains(t, out.String(), "code")
	r.Push("```\n")
	require.Contains(t, out.String(), "```go")
	require.Contains(t, out.String(), "code")
}

func TestInterruptControllerFirstPressCancelsTurn(t *testing.T) {
	c := NewInterruptController()
	ctx, stop := c.Begin(context.Background())
	defer stop()

	c.Signal()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected turn context to be cancelled on first press")
	}
	select {
	case <-c.Done:
		t.Fatal("process Done should not close on a single press")
	default:
	}
}

func TestInterruptControllerSecondPressWithinWindowExits(t *testing.T) {
	c := NewInterruptController()
	_, stop := c.Begin(context.Background())
	defer stop()

	c.Signal()
	c.Signal()
	select {
	case <-c.Done:
	default:
		t.Fatal("expected process Done to close on second press within window")
	}
}

func TestInterruptControllerOutsideTurnClosesDoneImmediately(t *testing.T) {
	c := NewInterruptController()
	c.Signal()
	select {
	case <-c.Done:
	default:
		t.Fatal("expected Done to close when no turn is in flight")
	}
}
