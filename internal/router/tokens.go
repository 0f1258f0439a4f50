package router

import (
	"errors"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ErrEncodingLoading is returned by TiktokenCounter.Count until the BPE
// ranks are available.
var ErrEncodingLoading = errors.New("token encoding is still loading")

// TiktokenCounter counts tokens with the BPE of a given model. The encoding
// may have to be downloaded, so it is loaded in the background and Count
// never waits for it.
type TiktokenCounter struct {
	model string
	load  func(model string) (*tiktoken.Tiktoken, error)

	once  sync.Once
	ready chan struct{}
	enc   *tiktoken.Tiktoken
	err   error
}

func NewTiktokenCounter(model string) *TiktokenCounter {
	return &TiktokenCounter{model: model, load: loadEncoding, ready: make(chan struct{})}
}

// Warm starts loading the encoding without blocking.
func (c *TiktokenCounter) Warm() {
	c.once.Do(func() {
		go func() {
			c.enc, c.err = c.load(c.model)
			close(c.ready)
		}()
	})
}

func (c *TiktokenCounter) Count(text string) (int, error) {
	c.Warm()
	select {
	case <-c.ready:
	default:
		return 0, ErrEncodingLoading
	}
	if c.err != nil {
		return 0, c.err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}

func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// unknown or custom model names fall back to the common encoding
		return tiktoken.GetEncoding("cl100k_base")
	}
	return enc, nil
}
