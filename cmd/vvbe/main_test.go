package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/verseblueprint/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{errors.NewInvalidRequestError("bad flag"), 2},
		{errors.Wrap(errors.NewNotFoundError("graph %s", "x.blueprint"), "load"), 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}
