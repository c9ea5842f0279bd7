package fhir_etl

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestFTPLister(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	newLister := func(conn *fakeFTPConn) *FTPLister {
		l := NewFTPLister("ftp.example.org:21", "/vol1/ftp/release/", "VCF")
		l.dial = func(context.Context, string) (ftpConn, error) { return conn, nil }
		l.now = func() time.Time { return now }
		return l
	}

	t.Run("lists matching files", func(t *testing.T) {
		conn := &fakeFTPConn{
			names: []string{".", "..", "/vol1/ftp/release/" + OneKGFileNames[0], OneKGFileNames[1], "README.20141104"},
			sizes: map[string]int64{OneKGFileNames[0]: 1024},
			times: map[string]time.Time{OneKGFileNames[0]: testModified},
		}
		got, err := newLister(conn).List(context.Background())
		if err != nil {
			t.Fatalf("cannot list: %q", err)
		}
		want := []RemoteFile{
			{Name: OneKGFileNames[0], Size: 1024, LastModified: testModified},
			{Name: OneKGFileNames[1], Size: 0, LastModified: now},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v want %+v", got, want)
		}
		if conn.dir != "/vol1/ftp/release/" {
			t.Errorf("got directory %q", conn.dir)
		}
		if !conn.quit {
			t.Errorf("connection left open")
		}
	})

	t.Run("login failures are returned", func(t *testing.T) {
		conn := &fakeFTPConn{loginErr: errors.New("530 Login incorrect")}
		if _, err := newLister(conn).List(context.Background()); err == nil {
			t.Errorf("no error for a failed login")
		}
	})

	t.Run("dial failures are returned", func(t *testing.T) {
		l := NewFTPLister("ftp.example.org:21", "/", "vcf")
		l.dial = func(context.Context, string) (ftpConn, error) { return nil, errors.New("connection refused") }
		if _, err := l.List(context.Background()); err == nil {
			t.Errorf("no error for a failed dial")
		}
	})
}
