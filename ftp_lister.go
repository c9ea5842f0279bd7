package fhir_etl

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FileLister lists the files of a release directory.
type FileLister interface {
	List(ctx context.Context) ([]RemoteFile, error)
}

// ftpConn is the part of *ftp.ServerConn the lister uses.
type ftpConn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	NameList(path string) ([]string, error)
	FileSize(path string) (int64, error)
	GetTime(path string) (time.Time, error)
	Quit() error
}

type FTPLister struct {
	addr   string
	dir    string
	filter string
	dial   func(ctx context.Context, addr string) (ftpConn, error)
	now    func() time.Time
}

// NewFTPLister lists dir on the FTP server at addr ("host:port") with an
// anonymous login, keeping names that contain filter.
func NewFTPLister(addr, dir, filter string) *FTPLister {
	return &FTPLister{addr: addr, dir: dir, filter: filter, dial: dialFTP, now: time.Now}
}

func dialFTP(ctx context.Context, addr string) (ftpConn, error) {
	c, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(60*time.Second))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the matching files with their size and modification time.
// Files whose size cannot be read are listed with size 0; files whose time
// cannot be read get the current time.
func (l *FTPLister) List(ctx context.Context) ([]RemoteFile, error) {
	conn, err := l.dial(ctx, l.addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to %s: %w", l.addr, err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("Failed to log in to %s: %w", l.addr, err)
	}
	if err := conn.ChangeDir(l.dir); err != nil {
		return nil, fmt.Errorf("Failed to change to %s: %w", l.dir, err)
	}
	names, err := conn.NameList("")
	if err != nil {
		return nil, fmt.Errorf("Failed to list %s: %w", l.dir, err)
	}

	var files []RemoteFile
	for _, name := range names {
		name = path.Base(strings.TrimSpace(name))
		if !matchesFilter(name, l.filter) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size, err := conn.FileSize(name)
		if err != nil || size < 0 {
			size = 0
		}
		modified, err := conn.GetTime(name)
		if err != nil {
			log.Printf("No modification time for %s: %v", name, err)
			modified = l.now()
		}
		files = append(files, RemoteFile{Name: name, Size: size, LastModified: modified})
	}
	return files, nil
}

func matchesFilter(name, filter string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}
