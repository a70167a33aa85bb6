package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tcolgate/mp3"
)

var errNoFrame = errors.New("no mpeg audio frame found")

// mp3Duration returns the play length in seconds of an MP3 file. Every frame
// is timed, so VBR files need no Xing header. ID3 tags are skipped by the
// decoder.
func mp3Duration(data []byte) (float64, error) {
	d := mp3.NewDecoder(bytes.NewReader(data))

	var (
		f       mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for {
		err := d.Decode(&f, &skipped)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("frame %d: %w", frames, err)
		}
		total += f.Duration()
		frames++
	}
	if frames == 0 {
		return 0, errNoFrame
	}
	return total.Seconds(), nil
}
