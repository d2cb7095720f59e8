package signer

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContainerURL = "https://acct.blob.core.windows.net/photos"

var testAccountKey = base64.StdEncoding.EncodeToString([]byte("secret-key-for-signing-tests"))

func testConnectionString() string {
	return "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=" + testAccountKey + ";EndpointSuffix=core.windows.net"
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSharedKeyIssuerSignsReadOnlyURL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewSharedKeyIssuer(testContainerURL, testConnectionString(), WithClock(fixedClock(now)))
	require.True(t, issuer.CanSign())

	got := issuer.Issue(context.Background(), "c1/100-room.jpg")
	require.True(t, got.IsSigned())
	assert.Equal(t, "signed", got.Kind.String())

	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	assert.Equal(t, "acct.blob.core.windows.net", u.Host)
	assert.Equal(t, "/photos/c1/100-room.jpg", u.Path)

	q := u.Query()
	assert.NotEmpty(t, q.Get("sig"))
	assert.Equal(t, "r", q.Get("sp"))
	assert.Equal(t, "2024-05-01T11:55:00Z", q.Get("st"))
	assert.Equal(t, "2024-05-02T12:00:00Z", q.Get("se"))

	assert.NotContains(t, got.URL, testAccountKey)
	assert.NotContains(t, got.URL, url.QueryEscape(testAccountKey))
}

func TestGrantWindowIsConstant(t *testing.T) {
	issuer := NewSharedKeyIssuer(testContainerURL, testConnectionString())

	for _, key := range []string{"c1/1-room.jpg", "c2/999999999-before.png", "legacy/holiday.png"} {
		got := issuer.Issue(context.Background(), key)
		require.True(t, got.IsSigned(), key)
		assert.Equal(t, 24*time.Hour+5*time.Minute, got.Grant.Window(), key)
		assert.Equal(t, ReadPermission, got.Grant.Permissions)
		assert.Equal(t, key, got.Grant.ObjectKey)
	}
}

func TestUnskewedGrantStartsAtSigningTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	policy := DefaultPolicy()

	g := policy.NewUnskewedGrant("c1/1-room.jpg", now)
	assert.True(t, now.Equal(g.ValidFrom))
	assert.True(t, now.Add(24*time.Hour).Equal(g.ValidUntil))
	assert.Equal(t, ReadPermission, g.Permissions)
	assert.Equal(t, policy.NewGrant("c1/1-room.jpg", now).ValidUntil, g.ValidUntil)
}

func TestIssuerFallsBackToUnsignedURL(t *testing.T) {
	tests := []struct {
		name string
		conn string
	}{
		{"garbage", "this is not a descriptor"},
		{"empty", ""},
		{"no account key", "DefaultEndpointsProtocol=https;AccountName=acct"},
		{"key not base64", "AccountName=acct;AccountKey=%%%not-base64%%%"},
		{"sas only", "BlobEndpoint=https://acct.blob.core.windows.net;SharedAccessSignature=sv=2020&sig=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := NewSharedKeyIssuer(testContainerURL, tt.conn)
			assert.False(t, issuer.CanSign())

			got := issuer.Issue(context.Background(), "c1/100-room.jpg")
			assert.False(t, got.IsSigned())
			assert.Equal(t, "unsigned", got.Kind.String())
			assert.Equal(t, testContainerURL+"/c1/100-room.jpg", got.URL)

			u, err := url.Parse(got.URL)
			require.NoError(t, err)
			assert.Equal(t, "https", u.Scheme)
			assert.Empty(t, u.RawQuery)
		})
	}
}

func TestObjectURLEscapesSegments(t *testing.T) {
	assert.Equal(t,
		"https://acct.blob.core.windows.net/photos/c%201/legacy%23file.png",
		ObjectURL(testContainerURL+"/", "c 1/legacy#file.png"),
	)
}

func TestParseConnectionString(t *testing.T) {
	creds, err := ParseConnectionString(testConnectionString())
	require.NoError(t, err)
	assert.Equal(t, "acct", creds.AccountName)
	assert.Equal(t, testAccountKey, creds.AccountKey)
	assert.Equal(t, "https://acct.blob.core.windows.net", creds.BlobEndpoint)
	assert.True(t, creds.CanSign())
	assert.NotContains(t, creds.String(), testAccountKey)

	creds, err = ParseConnectionString("AccountName=devstoreaccount1;AccountKey=" + testAccountKey + ";BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1", creds.BlobEndpoint)

	_, err = ParseConnectionString("AccountKey=abc")
	assert.ErrorIs(t, err, ErrMalformedCredentials)

	_, err = ParseConnectionString("garbage")
	assert.ErrorIs(t, err, ErrMalformedCredentials)
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "photos", containerName(testContainerURL))
	assert.Equal(t, "photos", containerName("http://127.0.0.1:10000/devstoreaccount1/photos/"))
}
