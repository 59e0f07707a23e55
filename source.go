package zbxdns

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReaderSource yields the lines of r with surrounding whitespace removed.
// Blank and whitespace-only lines are skipped.
func ReaderSource(r io.Reader) HostSource {
	return readerSource{r: r}
}

type readerSource struct {
	r io.Reader
}

func (s readerSource) Hostnames(ctx context.Context, fn func(hostname string) error) error {
	scanner := bufio.NewScanner(s.r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		hostname := strings.TrimSpace(scanner.Text())
		if hostname == "" {
			continue
		}
		if err := fn(hostname); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading line: %w", err)
	}
	return nil
}

// FileSource is a ReaderSource over the file at path.
// The file is opened each time Hostnames is called.
func FileSource(path string) HostSource {
	return fileSource(path)
}

type fileSource string

func (path fileSource) Hostnames(ctx context.Context, fn func(hostname string) error) error {
	f, err := os.Open(string(path))
	if err != nil {
		return fmt.Errorf("error opening dns file: %w", err)
	}
	defer f.Close()
	return readerSource{r: f}.Hostnames(ctx, fn)
}
