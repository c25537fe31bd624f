package catalogparser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/medisearch/logging"
)

// maxSeedSize caps a seed file, local or downloaded
const maxSeedSize = 256 << 20

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Minute,
	}
}

// download fetches url and returns its body as UTF-8
func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url %s: %w", url, err)
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", url, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxSeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	logging.Debug("Catalog seed downloaded", "url", url, "bytes", len(body))
	return toUTF8(body)
}

// readFile reads a local seed and returns it as UTF-8
func readFile(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open seed %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("Failed to close seed file", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(file, maxSeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed %s: %w", path, err)
	}
	return toUTF8(body)
}

// toUTF8 keeps valid UTF-8 as-is and decodes anything else from ISO-8859-1
func toUTF8(body []byte) ([]byte, error) {
	if utf8.Valid(body) {
		return body, nil
	}

	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ISO-8859-1 seed: %w", err)
	}
	return decoded, nil
}
