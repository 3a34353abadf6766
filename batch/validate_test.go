package batch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-service/batch"
)

func headerWith(fields ...string) *batch.Header {
	header := batch.NewHeader(3)
	for i := 0; i+1 < len(fields); i += 2 {
		header.Add(fields[i], fields[i+1], 4+i/2)
	}
	return header
}

func TestUnitTestValidateContentTransferEncoding(t *testing.T) {
	for _, tc := range []struct {
		name        string
		header      *batch.Header
		expectedErr error
	}{
		{
			name:   "binary is valid",
			header: headerWith("Content-Transfer-Encoding", "binary"),
		},
		{
			name:   "mixed case binary is valid",
			header: headerWith("content-transfer-encoding", "Binary"),
		},
		{
			name:        "absent is missing",
			header:      headerWith(),
			expectedErr: batch.ErrMissingContentTransferEncoding,
		},
		{
			name:        "quoted-printable is invalid",
			header:      headerWith("Content-Transfer-Encoding", "quoted-printable"),
			expectedErr: batch.ErrInvalidContentTransferEncoding,
		},
		{
			name:        "repeated field is an invalid header",
			header:      headerWith("Content-Transfer-Encoding", "binary", "Content-Transfer-Encoding", "binary"),
			expectedErr: batch.ErrInvalidHeader,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := batch.ValidateContentTransferEncoding(tc.header)
			if tc.expectedErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestUnitTestGetContentLength(t *testing.T) {
	for _, tc := range []struct {
		name           string
		header         *batch.Header
		expectedLength int
		expectedErr    error
	}{
		{
			name:           "absent returns -1",
			header:         headerWith(),
			expectedLength: -1,
		},
		{
			name:           "zero",
			header:         headerWith("Content-Length", "0"),
			expectedLength: 0,
		},
		{
			name:           "positive",
			header:         headerWith("content-length", " 120 "),
			expectedLength: 120,
		},
		{
			name:        "negative is an invalid content length",
			header:      headerWith("Content-Length", "-5"),
			expectedErr: batch.ErrInvalidContentLength,
		},
		{
			name:        "not a number is an invalid header",
			header:      headerWith("Content-Length", "abc"),
			expectedErr: batch.ErrInvalidHeader,
		},
		{
			name:        "explicit plus sign is an invalid header",
			header:      headerWith("Content-Length", "+5"),
			expectedErr: batch.ErrInvalidHeader,
		},
		{
			name:        "hexadecimal is an invalid header",
			header:      headerWith("Content-Length", "0x10"),
			expectedErr: batch.ErrInvalidHeader,
		},
		{
			name:           "leading zeros are decimal",
			header:         headerWith("Content-Length", "010"),
			expectedLength: 10,
		},
		{
			name:        "repeated field is an invalid header",
			header:      headerWith("Content-Length", "1", "Content-Length", "2"),
			expectedErr: batch.ErrInvalidHeader,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			length, err := batch.GetContentLength(tc.header)
			if tc.expectedErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedLength, length)
				return
			}
			require.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestUnitTestValidateContentType(t *testing.T) {
	err := batch.ValidateContentType(headerWith("Content-Type", "multipart/mixed; boundary=changeset_1"), batch.PatternMultipartMixed)
	require.NoError(t, err)

	err = batch.ValidateContentType(headerWith("Content-Type", "Application/HTTP"), batch.PatternApplicationHTTP)
	require.NoError(t, err)

	err = batch.ValidateContentType(headerWith(), batch.PatternApplicationHTTP)
	require.ErrorIs(t, err, batch.ErrMissingContentType)

	var batchErr *batch.Error
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 3, batchErr.LineNumber)

	err = batch.ValidateContentType(headerWith("Content-Type", "application/json"), batch.PatternApplicationHTTP)
	require.ErrorIs(t, err, batch.ErrInvalidContentType)
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 4, batchErr.LineNumber)
	assert.Contains(t, err.Error(), "(line 4)")
}

func TestUnitTestHeaderIsCaseInsensitive(t *testing.T) {
	header := headerWith("Content-ID", "1", "x-custom", "a", "X-Custom", "b")

	assert.Equal(t, "1", header.Get("content-id"))
	assert.Equal(t, []string{"a", "b"}, header.Values("X-CUSTOM"))

	clone := header.Clone()
	clone.Set("Content-Id", "2", 9)
	assert.Equal(t, "1", header.Get(batch.HeaderContentID))
	assert.Equal(t, "2", clone.Get(batch.HeaderContentID))

	clone.Del("x-custom")
	assert.Nil(t, clone.Field("X-Custom"))
	assert.Len(t, clone.Fields(), 1)

	httpHeader := header.HTTPHeader()
	assert.Equal(t, []string{"a", "b"}, httpHeader.Values("X-Custom"))
}
