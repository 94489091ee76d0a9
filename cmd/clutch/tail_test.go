package main

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clutchchat/clutch/internal/models"
	"github.com/clutchchat/clutch/internal/timeline"
)

func tailMessage(id string, offset int) models.Message {
	return models.Message{
		ID:        id,
		ChannelID: "c1",
		UserID:    "u1",
		Content:   "msg " + id,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Second),
	}
}

func TestPrinterWritesEachMessageOnce(t *testing.T) {
	tl := timeline.New()
	tl.Reset("c1")
	tl.ApplyHistory("c1", []models.Message{tailMessage("m2", 2), tailMessage("m1", 1)})

	var buf bytes.Buffer
	p := newPrinter(tl, &buf)

	p.redraw()
	p.redraw()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "msg m1")
	assert.Contains(t, lines[1], "msg m2")
}

func TestPrinterConcurrentRedraws(t *testing.T) {
	tl := timeline.New()
	tl.Reset("c1")
	tl.ApplyHistory("c1", nil)

	var buf bytes.Buffer
	p := newPrinter(tl, &buf)

	// the read pump and the main goroutine redraw at the same time
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				tl.AppendLive(tailMessage(fmt.Sprintf("m%d-%d", g, i), g*25+i))
				p.redraw()
			}
		}(g)
	}
	wg.Wait()
	p.redraw()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 100)
	seen := make(map[string]bool)
	for _, line := range lines {
		assert.False(t, seen[line], "message printed twice: %s", line)
		seen[line] = true
	}
}

func TestFormatMessageIncludesAttachmentCount(t *testing.T) {
	m := tailMessage("m1", 1)
	m.Attachments = []string{"a.png", "b.png"}
	assert.True(t, strings.HasSuffix(formatMessage(m), "(+2 attachments)"))
}
