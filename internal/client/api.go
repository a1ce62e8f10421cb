package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	gcodeRoot     = "gcodes"
	uploadTimeout = 5 * time.Minute
)

// call runs req and decodes the result member into dest. Non-2xx statuses
// become *StatusError.
func (s *Session) call(ctx context.Context, req Request, dest any) error {
	resp, err := s.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Path: req.Path, Status: resp.Status, Message: ErrorMessage(resp.Body)}
	}
	if dest == nil {
		return nil
	}
	if err := decodeResult(resp.Body, dest); err != nil {
		s.log.Errorw("controller_payload_malformed", "path", req.Path, "err", err)
		return err
	}
	return nil
}

func (s *Session) get(ctx context.Context, path string, query url.Values, dest any) error {
	return s.call(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, dest)
}

// PrinterInfo fetches /printer/info.
func (s *Session) PrinterInfo(ctx context.Context) (PrinterInfo, error) {
	var info PrinterInfo
	err := s.get(ctx, "/printer/info", nil, &info)
	return info, err
}

// ObjectsList returns every printer object name the controller exposes.
func (s *Session) ObjectsList(ctx context.Context) ([]string, error) {
	var res struct {
		Objects []string `json:"objects"`
	}
	if err := s.get(ctx, "/printer/objects/list", nil, &res); err != nil {
		return nil, err
	}
	return res.Objects, nil
}

// QueryObjects fetches the status of the named objects. A nil attribute
// list requests every attribute of that object.
func (s *Session) QueryObjects(ctx context.Context, objects map[string][]string) (ObjectStatus, error) {
	var res struct {
		Status ObjectStatus `json:"status"`
	}
	if err := s.get(ctx, "/printer/objects/query", objectsQuery(objects), &res); err != nil {
		return nil, err
	}
	return res.Status, nil
}

func objectsQuery(objects map[string][]string) url.Values {
	q := url.Values{}
	for name, attrs := range objects {
		q.Set(name, strings.Join(attrs, ","))
	}
	return q
}

// FileMetadata fetches slicer metadata for a gcode file.
func (s *Session) FileMetadata(ctx context.Context, filename string) (FileMetadata, error) {
	var meta FileMetadata
	err := s.get(ctx, "/server/files/metadata", url.Values{"filename": {filename}}, &meta)
	return meta, err
}

// ListFiles lists the gcode files known to the controller.
func (s *Session) ListFiles(ctx context.Context) ([]FileEntry, error) {
	var files []FileEntry
	if err := s.get(ctx, "/server/files/list", url.Values{"root": {gcodeRoot}}, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// UploadFile stores content as name in dir, a directory relative to the
// gcode root. An empty dir is the root itself.
func (s *Session) UploadFile(ctx context.Context, dir, name string, content io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("root", gcodeRoot); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if dir != "" {
		if err := mw.WriteField("path", dir); err != nil {
			return fmt.Errorf("build upload: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read upload %q: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", mw.FormDataContentType())
	return s.call(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/server/files/upload",
		Body:    buf.Bytes(),
		Headers: headers,
		Timeout: uploadTimeout,
	}, nil)
}

// StartPrint starts printing a file from the gcode root.
func (s *Session) StartPrint(ctx context.Context, filename string) error {
	return s.call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/printer/print/start",
		Query:  url.Values{"filename": {filename}},
	}, nil)
}

// PowerRequest builds the device power command. The response is left to
// the caller so it can capture the controller's error message.
func PowerRequest(device string, on bool) Request {
	action := "off"
	if on {
		action = "on"
	}
	return Request{
		Method: http.MethodPost,
		Path:   "/machine/device_power/device",
		Query:  url.Values{"device": {device}, "action": {action}},
	}
}

// PowerDevices lists the controller's power devices with their status.
func (s *Session) PowerDevices(ctx context.Context) ([]PowerDevice, error) {
	var res struct {
		Devices []PowerDevice `json:"devices"`
	}
	if err := s.get(ctx, "/machine/device_power/devices", nil, &res); err != nil {
		return nil, err
	}
	return res.Devices, nil
}

// UpdateStatus reports software update availability without forcing a
// refresh on the controller side.
func (s *Session) UpdateStatus(ctx context.Context) (UpdateStatus, error) {
	var st UpdateStatus
	err := s.get(ctx, "/machine/update/status", url.Values{"refresh": {"false"}}, &st)
	return st, err
}

// AnnounceFeed subscribes the controller's announcement service to the
// named feed.
func (s *Session) AnnounceFeed(ctx context.Context, name string) error {
	return s.call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/server/announcements/feed",
		Query:  url.Values{"name": {name}},
	}, nil)
}

// RunGcode executes a gcode script. The controller's reply carries no data.
func (s *Session) RunGcode(ctx context.Context, script string) error {
	return s.get(ctx, "/printer/gcode/script", url.Values{"script": {script}}, nil)
}

// OneshotToken returns a single-use token for query-string authentication.
func (s *Session) OneshotToken(ctx context.Context) (string, error) {
	var token string
	if err := s.get(ctx, "/access/oneshot_token", nil, &token); err != nil {
		return "", err
	}
	return token, nil
}

// TokenQuery returns "?token=..." for embeddable URLs, or "" when the
// controller does not require authentication or the token call fails.
func (s *Session) TokenQuery(ctx context.Context) string {
	if !s.Authenticated() && s.apiKey == "" {
		return ""
	}
	token, err := s.OneshotToken(ctx)
	if err != nil {
		s.log.Warnw("oneshot_token_failed", "err", err)
		return ""
	}
	return "?token=" + url.QueryEscape(token)
}

func dbQuery(namespace, key string) url.Values {
	return url.Values{"namespace": {namespace}, "key": {key}}
}

// DatabaseGet reads a value from the controller's key-value store.
func (s *Session) DatabaseGet(ctx context.Context, namespace, key string) (json.RawMessage, error) {
	var res struct {
		Value json.RawMessage `json:"value"`
	}
	if err := s.get(ctx, "/server/database/item", dbQuery(namespace, key), &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// DatabasePut stores value under key.
func (s *Session) DatabasePut(ctx context.Context, namespace, key string, value any) error {
	body, err := json.Marshal(map[string]any{"namespace": namespace, "key": key, "value": value})
	if err != nil {
		return fmt.Errorf("encode database item: %w", err)
	}
	return s.call(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/server/database/item",
		Body:    body,
		Headers: jsonHeaders(),
	}, nil)
}

// DatabaseDelete removes key from the store.
func (s *Session) DatabaseDelete(ctx context.Context, namespace, key string) error {
	return s.call(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/server/database/item",
		Query:  dbQuery(namespace, key),
	}, nil)
}
