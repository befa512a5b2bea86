package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// Body encodes a request payload and reports its content type.
type Body interface {
	Encode() (io.Reader, string, error)
}

type jsonBody struct{ v any }

// JSON encodes v as application/json.
func JSON(v any) Body { return jsonBody{v: v} }

func (b jsonBody) Encode() (io.Reader, string, error) {
	data, err := json.Marshal(b.v)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

type formBody struct{ values url.Values }

// Form encodes values as application/x-www-form-urlencoded.
func Form(values url.Values) Body { return formBody{values: values} }

func (b formBody) Encode() (io.Reader, string, error) {
	return strings.NewReader(b.values.Encode()), "application/x-www-form-urlencoded", nil
}

// FilePart is one file in a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Reader      io.Reader
}

type multipartBody struct {
	fields url.Values
	files  []FilePart
}

// Multipart encodes plain fields and files as multipart/form-data.
func Multipart(fields url.Values, files ...FilePart) Body {
	return multipartBody{fields: fields, files: files}
}

func (b multipartBody) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, vals := range b.fields {
		for _, v := range vals {
			if err := mw.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}

	for _, f := range b.files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(f.Filename)))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, "", fmt.Errorf("copy file %s: %w", f.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
