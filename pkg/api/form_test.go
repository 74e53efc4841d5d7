package api

import (
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseForm decodes an encoded form back into ordered part names and values.
func parseForm(t *testing.T, body io.Reader, contentType string) ([]string, map[string]string) {
	t.Helper()
	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)

	r := multipart.NewReader(body, params["boundary"])
	var names []string
	values := map[string]string{}
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		names = append(names, part.FormName())
		values[part.FormName()] = string(data)
	}
	return names, values
}

func TestFormOptionalFields(t *testing.T) {
	count := 0
	var f form
	f.add("diagnosis", "")
	f.addOptional("apiKey", "")
	f.addOptional("model", "gpt-4o")
	f.addInt("eventCount", 0)
	f.addOptionalInt("missing", nil)
	f.addOptionalInt("present", &count)

	body, contentType, length, err := f.encode()
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), length)

	names, values := parseForm(t, strings.NewReader(string(data)), contentType)
	assert.Equal(t, []string{"diagnosis", "model", "eventCount", "present"}, names)
	assert.Equal(t, "", values["diagnosis"])
	assert.Equal(t, "gpt-4o", values["model"])
	assert.Equal(t, "0", values["eventCount"])
	assert.Equal(t, "0", values["present"])
}

func TestFormStreamsFileWithExactLength(t *testing.T) {
	content := strings.Repeat("0123456789", 1000)
	var f form
	f.addFile("file", NewFileUpload("gc.log", []byte(content)))
	f.add("eventCount", "10")

	body, contentType, length, err := f.encode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), length)

	names, values := parseForm(t, strings.NewReader(string(data)), contentType)
	assert.Equal(t, []string{"file", "eventCount"}, names)
	assert.Equal(t, content, values["file"])
	assert.Equal(t, "10", values["eventCount"])
}

func TestFormUnknownFileSize(t *testing.T) {
	var f form
	f.addFile("file", &FileUpload{Name: "gc.log", Reader: strings.NewReader("abc"), Size: -1})

	body, contentType, length, err := f.encode()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), length)

	_, values := parseForm(t, body, contentType)
	assert.Equal(t, "abc", values["file"])
}

func TestFormReplaysSameBody(t *testing.T) {
	var f form
	f.add("collectorType", "ZGC")
	f.addFile("file", NewFileUpload("gc.log", []byte("pause 3ms")))

	body, _, _, err := f.encode()
	require.NoError(t, err)
	first, err := io.ReadAll(body)
	require.NoError(t, err)

	getBody := f.getBody()
	require.NotNil(t, getBody)
	replay, err := getBody()
	require.NoError(t, err)
	second, err := io.ReadAll(replay)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFormWithoutSeekableFileCannotReplay(t *testing.T) {
	var f form
	f.addFile("file", &FileUpload{Name: "gc.log", Reader: io.NopCloser(strings.NewReader("abc")), Size: -1})
	assert.Nil(t, f.getBody())

	var fields form
	fields.add("diagnosis", "## ok")
	assert.NotNil(t, fields.getBody())
}

func TestFormRejectsSecondFile(t *testing.T) {
	var f form
	f.addFile("file", NewFileUpload("a.log", nil))
	f.addFile("other", NewFileUpload("b.log", nil))
	_, _, _, err := f.encode()
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gc-2025.log")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	file, err := OpenFile(path)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "gc-2025.log", file.Name)
	assert.Equal(t, int64(5), file.Size)

	_, err = OpenFile(filepath.Join(dir, "missing.log"))
	assert.Error(t, err)
	_, err = OpenFile(dir)
	assert.Error(t, err)
}
