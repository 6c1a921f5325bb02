package e2e

import (
	"context"
	"ephemeral/client"
	"ephemeral/render"
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const frameWait = 5 * time.Second

type BaseChatSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests.
// The whole suite skips unless E2E_SERVER_URL points at a running relay.
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL not set, skipping end-to-end suite")
	}
}

// Connect dials the relay with a colorized header for the step in logs.
func (s *BaseChatSuite) Connect(name string) *client.Client {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	ctx, cancel := context.WithTimeout(context.Background(), frameWait)
	defer cancel()

	c, err := client.Dial(ctx, logs.GetLoggerFromString("warn"), s.Config.ServerURL)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.ServerURL)
	return c
}

// NextFrame waits for the next frame or fails the test after frameWait.
func (s *BaseChatSuite) NextFrame(c *client.Client) render.Frame {
	select {
	case frame, open := <-c.Events():
		s.Require().True(open, "connection closed while waiting for a frame")
		return frame
	case <-time.After(frameWait):
		s.FailNow("timed out waiting for a frame")
		return render.Frame{}
	}
}

// WaitForKind drains frames until one of the given kind arrives.
func (s *BaseChatSuite) WaitForKind(c *client.Client, kind string) render.Frame {
	deadline := time.After(frameWait)
	for {
		select {
		case frame, open := <-c.Events():
			s.Require().True(open, "connection closed while waiting for kind "+kind)
			if frame.Kind == kind {
				return frame
			}
		case <-deadline:
			s.FailNowf("timed out", "no frame of kind %q within %v", kind, frameWait)
			return render.Frame{}
		}
	}
}

// ExpectSilence asserts no frame arrives within the window.
func (s *BaseChatSuite) ExpectSilence(c *client.Client, window time.Duration) {
	select {
	case frame, open := <-c.Events():
		if open {
			s.FailNowf("unexpected frame", "kind=%s text=%q", frame.Kind, frame.Text)
		}
	case <-time.After(window):
	}
}
