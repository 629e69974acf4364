package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/processor"
)

// multipartMemory is how much of an upload is buffered in memory before spilling to disk.
const multipartMemory = 32 << 20

// partSource adapts an uploaded file to convert.Source.
type partSource struct {
	header *multipart.FileHeader
}

func (p partSource) Name() string { return filepath.Base(p.header.Filename) }

func (p partSource) Open() (io.ReadCloser, error) { return p.header.Open() }

// convert handles POST /api/v1/convert: multipart field "files" (repeated) and an
// optional "base_url" field. The response is the transcript as a _chat.txt download.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	sources := make([]convert.Source, len(headers))
	for i, h := range headers {
		sources[i] = partSource{header: h}
	}

	res, err := s.proc.Convert(r.Context(), processor.Request{
		Sources:   sources,
		BaseURL:   r.FormValue("base_url"),
		Origin:    processor.OriginAPI,
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", convert.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+convert.OutputName+`"`)
	w.Header().Set("X-Conversion-Id", res.ID.String())
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, res.Text)
}

func errorStatus(err error) int {
	switch {
	case isTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case convert.IsInputError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}
