package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("bot@example.com", "ops@example.com", "3 new posts", "<p>hi</p>", "hi")

	assert.True(t, strings.HasPrefix(msg, "From: bot@example.com\r\nTo: ops@example.com\r\nSubject: 3 new posts\r\n"))
	assert.Contains(t, msg, `boundary="replyscout-boundary"`)

	plain := strings.Index(msg, "text/plain")
	html := strings.Index(msg, "text/html")
	assert.True(t, plain > 0 && html > plain, "plain part precedes html part")
	assert.True(t, strings.HasSuffix(msg, "--replyscout-boundary--\r\n"))
}
