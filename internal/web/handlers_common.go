package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/certgen/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxJSONBody bounds editor requests, which carry a few numbers each.
const maxJSONBody = 64 << 10

// parseIntParam parses a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// readUpload returns the bytes and name of the multipart "file" field,
// rejecting bodies over maxSize.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) ([]byte, string, error) {
	// Multipart framing needs a little room on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", core.ErrFileTooLarge
		}
		return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return nil, "", fmt.Errorf("%s: %w", header.Filename, core.ErrFileTooLarge)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return data, header.Filename, nil
}
