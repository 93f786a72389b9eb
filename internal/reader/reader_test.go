package reader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvalverde/PAAA/internal/datasource/httpds"
	"github.com/samvalverde/PAAA/internal/objectstore"
)

const sample = "Correo;Programa\nana@ucr.ac.cr;ATI\nluis@ucr.ac.cr;ATI\n"

// bucketAPI serves objects from a map keyed by "bucket/key".
type bucketAPI map[string][]byte

func (b bucketAPI) ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{}, nil
}

func (b bucketAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := b[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (b bucketAPI) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return &s3.PutObjectOutput{}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadLocalCSV(t *testing.T) {
	t.Parallel()

	tb, err := New().Read(context.Background(), writeFile(t, "encuesta.CSV", sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"Correo", "Programa"}, tb.Names())
	assert.Equal(t, 2, tb.Len())
}

func TestReadTSVForcesTab(t *testing.T) {
	t.Parallel()

	tb, err := New().Read(context.Background(), writeFile(t, "x.tsv", "a;b\tc\n1;2\t3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a;b", "c"}, tb.Names())
}

func TestReadObjectStore(t *testing.T) {
	t.Parallel()

	api := bucketAPI{"paaa/ATI/egresados/v1.csv": []byte(sample), "otro/x.json": []byte(`[{"k":1}]`)}
	r := New(WithObjectStore(objectstore.NewWithAPI(api, "paaa")))

	tb, err := r.Read(context.Background(), "s3://paaa/ATI/egresados/v1.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, tb.Len())

	tb, err = r.Read(context.Background(), "minio://otro/x.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, tb.Names())

	_, err = r.Read(context.Background(), "s3://paaa/missing.csv")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)

	_, err = New().Read(context.Background(), "s3://paaa/ATI/egresados/v1.csv")
	assert.ErrorContains(t, err, "no object store configured")
}

func TestReadHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, sample)
	}))
	defer srv.Close()

	r := New(WithHTTP(httpds.NewClient(httpds.Config{Timeout: 2 * time.Second})))
	tb, err := r.Read(context.Background(), srv.URL+"/export/egresados.csv?dl=1")
	require.NoError(t, err)
	assert.Equal(t, 2, tb.Len())
}

func TestReadErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		name  string
		path  string
		check func(t *testing.T, err error)
	}{
		{
			name: "legacy_xls",
			path: writeFile(t, "viejo.xls", "binary"),
			check: func(t *testing.T, err error) {
				var ufe *UnsupportedFormatError
				require.True(t, errors.As(err, &ufe), "got %v", err)
				assert.Equal(t, ".xls", ufe.Ext)
			},
		},
		{
			name: "no_extension",
			path: "/nowhere/datos",
			check: func(t *testing.T, err error) {
				var ufe *UnsupportedFormatError
				require.True(t, errors.As(err, &ufe), "got %v", err)
				assert.Equal(t, "", ufe.Ext)
			},
		},
		{
			name: "header_only",
			path: writeFile(t, "vacio.csv", "email,programa\n"),
			check: func(t *testing.T, err error) {
				var ese *EmptySourceError
				require.True(t, errors.As(err, &ese), "got %v", err)
			},
		},
		{
			name: "missing_file",
			path: filepath.Join(t.TempDir(), "nope.csv"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, os.ErrNotExist)
			},
		},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			_, err := New().Read(ctx, c.path)
			require.Error(t, err)
			c.check(t, err)
		})
	}
}

func TestResolveRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := New().Resolve("ftp://host/file.csv")
	assert.ErrorContains(t, err, "ftp")
}
