package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/imageio"
	"github.com/df07/go-starfield/pkg/pipeline"
	"github.com/df07/go-starfield/pkg/renderer"
)

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "frame", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// FrameUpdate is sent once per rendered frame
type FrameUpdate struct {
	Index       int        `json:"index"`
	TotalFrames int        `json:"totalFrames"`
	FrameID     string     `json:"frameId"`
	ImageData   string     `json:"imageData"` // Base64 encoded PNG preview
	Stats       FrameStats `json:"stats"`
	IsLast      bool       `json:"isLast"`
	ElapsedMs   int64      `json:"elapsedMs"`
}

// FrameStats mirrors the compositor statistics
type FrameStats struct {
	Items       int   `json:"items"`
	Dropped     int   `json:"dropped"`
	Occluded    int   `json:"occluded"`
	Splatted    int   `json:"splatted"`
	Tiles       int   `json:"tiles"`
	ActiveTiles int   `json:"activeTiles"`
	RenderMs    int64 `json:"renderMs"`
}

// handleRender renders a sequence and streams each frame via SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)
	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()

	// Setup console logging and streaming
	consoleChan := make(chan ConsoleMessage, 50)
	webLogger := NewWebLogger(uuid.NewString(), consoleChan, s.logger)
	consoleCtx, stopConsole := context.WithCancel(ctx)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(consoleCtx, consoleChan, sseEventChan)
	}()

	// flush everything queued before the handler returns
	defer func() {
		stopConsole()
		<-consoleDone
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}
	cfg, err := s.requestConfig(req)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	p, err := pipeline.New(ctx, cfg, s.caches, webLogger)
	if err != nil {
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}

	startTime := time.Now()
	frameChan, errChan := p.Renderer.RenderSequence(ctx)
	s.handleRenderingEvents(ctx, sseEventChan, frameChan, errChan, p.Slew.Frames(), startTime, webLogger)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents writes every event in a single goroutine until the channel
// is closed. Events queued after the client disconnects are discarded.
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan <-chan SSEEvent) {
	for event := range sseEventChan {
		if ctx.Err() != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			continue
		}
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

// streamConsoleMessages forwards console messages until ctx ends, then
// forwards whatever is still buffered.
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	forward := func(msg ConsoleMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Printf("Error marshaling console message: %v\n", err)
			return
		}
		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		default:
			// Channel full, skip message to avoid blocking
		}
	}

	for {
		select {
		case msg := <-consoleChan:
			forward(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-consoleChan:
					forward(msg)
				default:
					return
				}
			}
		}
	}
}

// handleRenderingEvents processes the main rendering event loop
func (s *Server) handleRenderingEvents(ctx context.Context, sseEventChan chan<- SSEEvent,
	frameChan <-chan renderer.FrameResult, errChan <-chan error, total int, startTime time.Time, logger core.Logger) {

	for result := range frameChan {
		s.handleFrameComplete(ctx, sseEventChan, result, total, startTime, logger)
	}
	if err := <-errChan; err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	// Send completion event
	select {
	case sseEventChan <- SSEEvent{Type: "complete", Data: "Rendering completed"}:
	case <-ctx.Done():
	}
}

// handleFrameComplete encodes a frame preview and sends it
func (s *Server) handleFrameComplete(ctx context.Context, sseEventChan chan<- SSEEvent, result renderer.FrameResult,
	total int, startTime time.Time, logger core.Logger) {
	if ctx.Err() != nil {
		return
	}

	img, err := imageio.Preview(result.Buffer, imageio.DefaultToneMapConfig())
	if err != nil {
		logger.Printf("Error tone mapping frame %d: %v\n", result.Index, err)
		return
	}
	imageData, err := s.imageToBase64PNG(img)
	if err != nil {
		logger.Printf("Error encoding frame %d: %v\n", result.Index, err)
		return
	}

	update := FrameUpdate{
		Index:       result.Index,
		TotalFrames: total,
		FrameID:     result.ID,
		ImageData:   imageData,
		Stats: FrameStats{
			Items:       result.Stats.Items,
			Dropped:     result.Stats.Dropped,
			Occluded:    result.Stats.Occluded,
			Splatted:    result.Stats.Splatted,
			Tiles:       result.Stats.Tiles,
			ActiveTiles: result.Stats.ActiveTiles,
			RenderMs:    result.Stats.Duration.Milliseconds(),
		},
		IsLast:    result.IsLast,
		ElapsedMs: time.Since(startTime).Milliseconds(),
	}
	data, err := json.Marshal(update)
	if err != nil {
		logger.Printf("Error marshaling frame update: %v\n", err)
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "frame", Data: string(data)}:
	case <-ctx.Done():
	}
}

// imageToBase64PNG converts an image to base64-encoded PNG
func (s *Server) imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan<- SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
