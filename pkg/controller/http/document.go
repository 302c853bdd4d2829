package http

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/usecase"
	"github.com/secmon-lab/tasklane/pkg/utils/safe"
)

const (
	uploadField     = "documents"
	multipartMemory = 8 << 20
)

type documentResponse struct {
	Document *model.Document `json:"document"`
}

type documentListResponse struct {
	Documents []*model.Document `json:"documents"`
}

// uploadLimit bounds the request body to what the policy could ever accept
// plus room for multipart framing
func uploadLimit(p model.UploadPolicy) int64 {
	return p.MaxFileSize*int64(p.MaxFilesPerRequest) + 1<<20
}

func uploadHandler(docUC *usecase.DocumentUseCase, policy model.UploadPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		r.Body = http.MaxBytesReader(w, r.Body, uploadLimit(policy))

		// a request without a multipart body goes on with no files so that
		// task and permission errors still come first
		var headers []*multipart.FileHeader
		if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, r, goerr.Wrap(usecase.ErrValidation, "upload is too large", goerr.V("limit", tooLarge.Limit)))
				return
			}
			writeError(w, r, goerr.Wrap(usecase.ErrValidation, "invalid multipart body", goerr.V("reason", err.Error())))
			return
		}
		if r.MultipartForm != nil {
			defer safe.Do(ctx, "remove multipart temp files", r.MultipartForm.RemoveAll)
			headers = r.MultipartForm.File[uploadField]
		}

		files := make([]usecase.UploadFile, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, r, goerr.Wrap(err, "failed to open uploaded file", goerr.V(model.FileNameKey, fh.Filename)))
				return
			}
			defer safe.Close(ctx, f)

			files = append(files, usecase.UploadFile{
				Name:     fh.Filename,
				MimeType: contentType(fh),
				Size:     fh.Size,
				Content:  f,
			})
		}

		docs, err := docUC.Upload(ctx, actorFrom(ctx), types.TaskID(chi.URLParam(r, "taskId")), files)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusCreated, strconv.Itoa(len(docs))+" document(s) uploaded successfully",
			documentListResponse{Documents: docs})
	}
}

// contentType returns the declared media type of a part without parameters
func contentType(fh *multipart.FileHeader) string {
	mt, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func listDocumentsHandler(docUC *usecase.DocumentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := docUC.ListByTask(r.Context(), actorFrom(r.Context()), types.TaskID(chi.URLParam(r, "taskId")))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "", documentListResponse{Documents: docs})
	}
}

// openDocumentHandler streams a document. An attachment counts as a
// download; an inline view does not.
func openDocumentHandler(docUC *usecase.DocumentUseCase, disposition string) http.HandlerFunc {
	mode := types.OpenModeView
	if disposition == "attachment" {
		mode = types.OpenModeDownload
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		doc, rc, err := docUC.Open(ctx, actorFrom(ctx), types.DocumentID(chi.URLParam(r, "id")), mode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer safe.Close(ctx, rc)

		w.Header().Set("Content-Type", doc.MimeType)
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
		w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.OriginalName}))
		w.WriteHeader(http.StatusOK)
		safe.Copy(ctx, w, rc)
	}
}

func deleteDocumentHandler(docUC *usecase.DocumentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := docUC.Delete(r.Context(), actorFrom(r.Context()), types.DocumentID(chi.URLParam(r, "id"))); err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "Document deleted successfully", nil)
	}
}
