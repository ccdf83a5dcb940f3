// Package remote talks to the orgchart REST API and loads its resources into
// a records.Store.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"orgchart/internal/cascade"
	"orgchart/internal/config"
	"orgchart/internal/instrument"
	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

// ResponseError is a non-success HTTP response. It wraps
// cascade.ErrRemoteRejection or cascade.ErrUnknownErrorShape.
type ResponseError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
	Err     error
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d %s: %s", e.Err, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Err, e.Status)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// Client is the HTTP side of the cascade coordinators.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	store      *records.Store
	naming     metadata.Naming
	serializer *Serializer
	decoder    decoder
}

var _ cascade.Remote = (*Client)(nil)

func New(cfg config.ClientConfig, store *records.Store) *Client {
	schema := store.Schema()
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		timeout:    cfg.Timeout,
		store:      store,
		naming:     schema.Naming(),
		serializer: NewSerializer(store),
		decoder:    decoder{schema: schema, naming: schema.Naming()},
	}
}

// FindRecord loads one resource and the requested include paths into the
// store and returns the loaded root.
func (c *Client) FindRecord(ctx context.Context, recordType, id string, include ...string) (*records.Record, error) {
	path := c.resourcePath(recordType, id)
	if len(include) > 0 {
		path += "?include=" + url.QueryEscape(strings.Join(include, ","))
	}

	status, body, err := c.do(ctx, fiber.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != fiber.StatusOK {
		return nil, c.failure(status, body)
	}

	var doc jsonapi.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", recordType, err)
	}
	if doc.Data == nil {
		return nil, fmt.Errorf("%w: %s/%s", records.ErrNotFound, recordType, id)
	}
	root, extra := c.decoder.document(doc)
	for _, rec := range extra {
		c.store.Push(rec)
	}
	return c.store.Push(root), nil
}

// FindAll loads every resource of a type into the store.
func (c *Client) FindAll(ctx context.Context, recordType string) ([]*records.Record, error) {
	status, body, err := c.do(ctx, fiber.MethodGet, c.collectionPath(recordType), nil)
	if err != nil {
		return nil, err
	}
	if status != fiber.StatusOK {
		return nil, c.failure(status, body)
	}

	var doc jsonapi.ListDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", recordType, err)
	}
	out := make([]*records.Record, 0, len(doc.Data))
	for _, res := range doc.Data {
		rec, extra := c.decoder.record(res)
		for _, x := range extra {
			c.store.Push(x)
		}
		out = append(out, c.store.Push(rec))
	}
	return out, nil
}

// SaveRecord creates (POST) a new record or updates (PATCH) a persisted one,
// embedding its embedded relationships in the same request. The returned
// records are not pushed; the caller applies them.
func (c *Client) SaveRecord(ctx context.Context, rec *records.Record) (*cascade.SaveResponse, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "remote", "client", "remote.save")
	defer span.End()
	span.SetEntity(rec.Type, rec.ID)

	method, path := fiber.MethodPatch, c.resourcePath(rec.Type, rec.ID)
	if rec.IsNew() {
		method, path = fiber.MethodPost, c.collectionPath(rec.Type)
	}

	data := c.serializer.Serialize(rec)
	status, body, err := c.do(ctx, method, path, jsonapi.Document{Data: &data})
	if err != nil {
		span.SetStatus("error")
		return nil, err
	}

	switch status {
	case fiber.StatusOK, fiber.StatusCreated:
	case fiber.StatusNoContent:
		span.SetStatus("ok")
		return &cascade.SaveResponse{}, nil
	case fiber.StatusUnprocessableEntity:
		span.SetStatus("invalid")
		return nil, c.validationFailure(rec.Identity, status, body)
	default:
		span.SetStatus("error")
		return nil, c.failure(status, body)
	}

	var doc jsonapi.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		span.SetStatus("error")
		return nil, fmt.Errorf("decode save response: %w", err)
	}
	root, extra := c.decoder.document(doc)
	span.SetStatus("ok")
	return &cascade.SaveResponse{Record: root, Included: extra}, nil
}

// DeleteRecord deletes rec on the server. The server-side cascade is
// reported through meta.deleted when the server sends it.
func (c *Client) DeleteRecord(ctx context.Context, rec *records.Record) (*cascade.DeleteResponse, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "remote", "client", "remote.delete")
	defer span.End()
	span.SetEntity(rec.Type, rec.ID)

	status, body, err := c.do(ctx, fiber.MethodDelete, c.resourcePath(rec.Type, rec.ID), nil)
	if err != nil {
		span.SetStatus("error")
		return nil, err
	}
	if status != fiber.StatusOK && status != fiber.StatusNoContent {
		span.SetStatus("error")
		return nil, c.failure(status, body)
	}

	resp := &cascade.DeleteResponse{}
	if len(body) == 0 {
		span.SetStatus("ok")
		return resp, nil
	}
	var doc jsonapi.DeleteDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		span.SetStatus("error")
		return nil, fmt.Errorf("decode delete response: %w", err)
	}
	for _, w := range doc.Meta.Deleted {
		resp.Deleted = append(resp.Deleted, c.decoder.identity(w))
	}
	span.SetMetadata("deleted", len(resp.Deleted))
	span.SetStatus("ok")
	return resp, nil
}

func (c *Client) validationFailure(root records.Identity, status int, body []byte) error {
	var doc jsonapi.ErrorsDocument
	if err := json.Unmarshal(body, &doc); err != nil || doc.Errors == nil {
		return &ResponseError{Status: status, Body: body, Err: cascade.ErrUnknownErrorShape}
	}
	return &cascade.ValidationFailure{Identity: root, Errors: c.decoder.validationErrors(*doc.Errors)}
}

func (c *Client) failure(status int, body []byte) error {
	re := &ResponseError{Status: status, Body: body, Err: cascade.ErrRemoteRejection}
	var env jsonapi.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		re.Code = env.Error.Code
		re.Message = env.Error.Message
	}
	return re
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	if payload != nil {
		a.JSON(payload)
	}
	if timeout := c.requestTimeout(ctx); timeout > 0 {
		a.Timeout(timeout)
	}
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, errors.Join(errs...))
	}
	log.Debug().Str("method", method).Str("path", path).Int("status", status).Msg("remote request")
	return status, body, nil
}

func (c *Client) requestTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	return timeout
}

func (c *Client) collectionPath(recordType string) string {
	return "/api/" + c.naming.WireType(recordType)
}

func (c *Client) resourcePath(recordType, id string) string {
	return c.collectionPath(recordType) + "/" + url.PathEscape(id)
}
