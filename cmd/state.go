package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/store"
)

// StoreGet prints the raw value of a key, indented when it is JSON.
func (r *Runner) StoreGet(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: key", shared.ErrMissingArgument)
	}

	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	value, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, value, "", "  "); err != nil {
		return r.writePlain("%s\n", value)
	}
	return r.writePlain("%s\n", buf.String())
}

// StoreSet writes a raw JSON value. Running sessions pick it up as an external change.
func (r *Runner) StoreSet(ctx context.Context, cmd *cli.Command) error {
	key, value := cmd.StringArg("key"), cmd.StringArg("value")
	if key == "" {
		return fmt.Errorf("%w: key", shared.ErrMissingArgument)
	}
	if !json.Valid([]byte(value)) {
		return fmt.Errorf("%w: value must be JSON, e.g. '\"processes\"'", shared.ErrInvalidInput)
	}
	if !slices.Contains(store.Keys, key) {
		r.logger.Warn("key is not read by jobsync", "key", key, "known", store.Keys)
	}

	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, key, []byte(value)); err != nil {
		return err
	}
	r.writePlain("✓ %s updated on %s\n", key, s.Name())
	return nil
}
