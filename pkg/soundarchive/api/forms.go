package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

const multipartMemory = 8 << 20

// legacyFile is a base64 file part in the JSON upload body.
type legacyFile struct {
	Name        string `json:"name"`
	Data        string `json:"data"`
	ContentType string `json:"content_type"`
}

// legacyBody is the JSON upload and edit body.
type legacyBody struct {
	Title           *string                `json:"title"`
	Description     *string                `json:"description"`
	Region          *string                `json:"region"`
	Status          *string                `json:"status"`
	VisibleToUser   *bool                  `json:"visible_to_user"`
	PubliclyVisible *bool                  `json:"publicly_visible"`
	Files           map[string]*legacyFile `json:"files"`
	RemoveMedia     []string               `json:"remove_media"`
	Previous        map[string]string      `json:"previous"`
}

// uploadForm is the decoded request regardless of encoding. Nil fields were
// not sent.
type uploadForm struct {
	Title           *string
	Description     *string
	Region          *string
	Status          *string
	VisibleToUser   *bool
	PubliclyVisible *bool
	Files           map[soundarchive.MediaKind]soundarchive.RawFile
	RemoveMedia     []soundarchive.MediaKind
	Previous        map[soundarchive.MediaKind]string
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// parseUploadForm decodes a multipart or legacy JSON body.
func parseUploadForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*uploadForm, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if isMultipart(r) {
		return parseMultipart(r)
	}
	return parseLegacyJSON(r.Body)
}

func parseMultipart(r *http.Request) (*uploadForm, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, soundarchive.NewValidationError("body", "malformed multipart form: "+err.Error())
	}
	mf := r.MultipartForm
	form := &uploadForm{
		Title:           formValue(mf, "title"),
		Description:     formValue(mf, "description"),
		Region:          formValue(mf, "region"),
		Status:          formValue(mf, "status"),
		VisibleToUser:   formBool(mf, "visible_to_user"),
		PubliclyVisible: formBool(mf, "publicly_visible"),
		Files:           make(map[soundarchive.MediaKind]soundarchive.RawFile),
		Previous:        make(map[soundarchive.MediaKind]string),
	}

	for _, kind := range soundarchive.MediaKinds {
		if headers := mf.File[string(kind)]; len(headers) > 0 && headers[0].Size > 0 {
			form.Files[kind] = fileFromHeader(headers[0])
		}
		if prev := formValue(mf, "previous_"+string(kind)); prev != nil {
			form.Previous[kind] = *prev
		}
	}
	if remove := formValue(mf, "remove_media"); remove != nil {
		kinds, err := parseKinds(strings.Split(*remove, ","))
		if err != nil {
			return nil, err
		}
		form.RemoveMedia = kinds
	}
	return form, nil
}

func fileFromHeader(fh *multipart.FileHeader) soundarchive.RawFile {
	return soundarchive.RawFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func formValue(mf *multipart.Form, key string) *string {
	vals, ok := mf.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

// formBool accepts "1" and "true" as true; any other sent value is false.
func formBool(mf *multipart.Form, key string) *bool {
	v := formValue(mf, key)
	if v == nil {
		return nil
	}
	b := *v == "1" || strings.EqualFold(*v, "true")
	return &b
}

func parseLegacyJSON(body io.Reader) (*uploadForm, error) {
	var in legacyBody
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		return nil, soundarchive.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	form := &uploadForm{
		Title:           in.Title,
		Description:     in.Description,
		Region:          in.Region,
		Status:          in.Status,
		VisibleToUser:   in.VisibleToUser,
		PubliclyVisible: in.PubliclyVisible,
		Files:           make(map[soundarchive.MediaKind]soundarchive.RawFile),
		Previous:        make(map[soundarchive.MediaKind]string),
	}
	for name, f := range in.Files {
		kind := soundarchive.MediaKind(name)
		if !kind.IsValid() {
			return nil, soundarchive.NewValidationError("files", fmt.Sprintf("unknown media kind %q", name))
		}
		if f == nil || f.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(stripDataURL(f.Data))
		if err != nil {
			return nil, soundarchive.NewValidationError(name, "data is not valid base64")
		}
		fileName := f.Name
		if fileName == "" {
			fileName = "file"
		}
		form.Files[kind] = soundarchive.BytesFile(fileName, f.ContentType, data)
	}
	for name, key := range in.Previous {
		kind := soundarchive.MediaKind(name)
		if !kind.IsValid() {
			return nil, soundarchive.NewValidationError("previous", fmt.Sprintf("unknown media kind %q", name))
		}
		form.Previous[kind] = key
	}
	kinds, err := parseKinds(in.RemoveMedia)
	if err != nil {
		return nil, err
	}
	form.RemoveMedia = kinds
	return form, nil
}

// stripDataURL drops a "data:<type>;base64," prefix.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if _, after, ok := strings.Cut(s, ","); ok {
			return after
		}
	}
	return s
}

func parseKinds(names []string) ([]soundarchive.MediaKind, error) {
	var kinds []soundarchive.MediaKind
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		kind := soundarchive.MediaKind(n)
		if !kind.IsValid() {
			return nil, soundarchive.NewValidationError("remove_media", fmt.Sprintf("unknown media kind %q", n))
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func (f *uploadForm) uploadRequest() soundarchive.UploadRequest {
	fields := soundarchive.Fields{
		Region:          f.Region,
		VisibleToUser:   f.VisibleToUser,
		PubliclyVisible: f.PubliclyVisible,
	}
	if f.Title != nil {
		fields.Title = *f.Title
	}
	if f.Description != nil {
		fields.Description = *f.Description
	}
	if f.Status != nil {
		fields.Status = soundarchive.Status(*f.Status)
	}
	return soundarchive.UploadRequest{Fields: fields, Files: f.Files}
}

func (f *uploadForm) updateRequest() soundarchive.UpdateRequest {
	req := soundarchive.UpdateRequest{
		Title:           f.Title,
		Description:     f.Description,
		Region:          f.Region,
		VisibleToUser:   f.VisibleToUser,
		PubliclyVisible: f.PubliclyVisible,
		Files:           f.Files,
		RemoveMedia:     f.RemoveMedia,
	}
	if f.Status != nil {
		s := soundarchive.Status(*f.Status)
		req.Status = &s
	}
	return req
}

func (f *uploadForm) replaceRequest(id uuid.UUID) soundarchive.ReplaceRequest {
	return soundarchive.ReplaceRequest{ContentID: id, Files: f.Files, Previous: f.Previous}
}
