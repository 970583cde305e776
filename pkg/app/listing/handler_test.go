package listing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/helpers"
	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

func writeSampleImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.img")
	require.NoError(t, os.WriteFile(path, helpers.BuildSampleVolume(), 0o600))
	return path
}

func entryPaths(resp *Response) []string {
	out := make([]string, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		out = append(out, e.Path)
	}
	return out
}

func TestHandle(t *testing.T) {
	image := writeSampleImage(t)
	target := app.ImageTarget{ImagePath: image}

	tests := []struct {
		name     string
		request  *Request
		validate func(*testing.T, *Response)
	}{
		{
			name:    "root directory",
			request: &Request{Target: target},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, uint64(5), resp.Directory)
				assert.Equal(t, "ok", resp.Status)
				assert.Equal(t, []string{"hello.txt", "docs", "$OrphanFiles"}, entryPaths(resp))
				assert.Equal(t, 0, resp.Deleted)
				assert.Equal(t, 1, resp.Directories)
				assert.Equal(t, "raw", resp.Image.Method)
				assert.Equal(t, uint64(16), resp.Image.Records)
			},
		},
		{
			name:    "directory by inode",
			request: &Request{Target: target, Inode: helpers.SampleDocsID, HasInode: true},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, []string{".", "..", "report.doc", "old.doc", "lost.txt"}, entryPaths(resp))
				assert.Equal(t, 2, resp.Deleted)
				assert.Equal(t, 5, resp.Total)
				assert.Equal(t, "r", resp.Entries[2].Type)
				assert.Equal(t, "-", resp.Entries[4].Type)
			},
		},
		{
			name:    "deleted only",
			request: &Request{Target: target, Inode: helpers.SampleDocsID, HasInode: true, DeletedOnly: true},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, []string{"old.doc", "lost.txt"}, entryPaths(resp))
				for _, e := range resp.Entries {
					assert.False(t, e.Allocated)
				}
			},
		},
		{
			name:    "allocated only",
			request: &Request{Target: target, Inode: helpers.SampleDocsID, HasInode: true, AllocatedOnly: true},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, []string{".", "..", "report.doc"}, entryPaths(resp))
			},
		},
		{
			name:    "orphan directory",
			request: &Request{Target: target, Orphans: true},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, uint64(16), resp.Directory)
				assert.Equal(t, []string{"stray.bin"}, entryPaths(resp))
				assert.Equal(t, helpers.SampleStrayID, resp.Entries[0].Inode)
			},
		},
		{
			name:    "recursive",
			request: &Request{Target: target, Recursive: true},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, []string{
					"hello.txt",
					"docs",
					"docs/.",
					"docs/..",
					"docs/report.doc",
					"docs/old.doc",
					"docs/lost.txt",
					"$OrphanFiles",
					"$OrphanFiles/stray.bin",
				}, entryPaths(resp))
				assert.Equal(t, 3, resp.Directories)
				assert.Equal(t, 3, resp.Deleted)
				assert.Equal(t, 1, resp.Entries[4].Depth)
			},
		},
		{
			name:    "recursive with depth limit",
			request: &Request{Target: target, Recursive: true, MaxDepth: 1},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, 1, resp.Directories)
				assert.Len(t, resp.Entries, 3)
			},
		},
		{
			name:    "explicit volume offset",
			request: &Request{Target: app.ImageTarget{ImagePath: image, Offset: 0, HasOffset: true}},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "configured", resp.Image.Method)
				assert.Len(t, resp.Entries, 3)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Handle(app.NewContext(), tt.request)
			require.NoError(t, err)
			require.NotNil(t, resp)
			tt.validate(t, resp)
		})
	}
}

func TestHandleErrors(t *testing.T) {
	image := writeSampleImage(t)

	tests := []struct {
		name    string
		request *Request
		code    string
	}{
		{
			name:    "missing image path",
			request: &Request{},
			code:    app.ErrCodeInvalidInput,
		},
		{
			name:    "image does not exist",
			request: &Request{Target: app.ImageTarget{ImagePath: filepath.Join(t.TempDir(), "missing.img")}},
			code:    app.ErrCodeImageAccess,
		},
		{
			name:    "inode out of range",
			request: &Request{Target: app.ImageTarget{ImagePath: image}, Inode: 99, HasInode: true},
			code:    app.ErrCodeNotFound,
		},
		{
			name:    "wrong volume offset",
			request: &Request{Target: app.ImageTarget{ImagePath: image, Offset: 4096, HasOffset: true}},
			code:    app.ErrCodeFileSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Handle(app.NewContext(), tt.request)
			require.Error(t, err)
			assert.Nil(t, resp)

			var appErr *app.CommonError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}
