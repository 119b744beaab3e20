package dataset

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/truenas/iocage-list/command"
)

// ZFSStore reads datasets through the zfs(8) utility.
type ZFSStore struct {
	runner command.Runner
	zfs    string
}

// NewZFSStore returns a store running the zfs binary at bin (default "zfs").
func NewZFSStore(runner command.Runner, bin string) *ZFSStore {
	if bin == "" {
		bin = "zfs"
	}
	return &ZFSStore{runner: runner, zfs: bin}
}

func (s *ZFSStore) Children(ctx context.Context, name string) ([]Dataset, error) {
	out, err := s.runner.Run(ctx, s.zfs, "list", "-H", "-t", "filesystem", "-o", "name,mountpoint", "-d", "1", name)
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("list children of %s: %w", name, err)
	}

	var children []Dataset
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		// Snapshots of name are not children even when listsnapshots is on.
		if len(fields) < 2 || fields[0] == name || strings.Contains(fields[0], "@") {
			continue
		}
		children = append(children, Dataset{Name: fields[0], Mountpoint: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read children of %s: %w", name, err)
	}
	return children, nil
}

func (s *ZFSStore) Property(ctx context.Context, name, property string) (string, error) {
	out, err := s.runner.Run(ctx, s.zfs, "get", "-H", "-o", "value", property, name)
	if err != nil {
		if isMissing(err) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("get %s of %s: %w", property, name, err)
	}

	value := strings.TrimSpace(string(out))
	if value == "-" {
		return "", nil
	}
	return value, nil
}

// zfs exits 1 with "dataset does not exist" for unknown names.
func isMissing(err error) bool {
	return command.ExitCode(err) == 1 && strings.Contains(err.Error(), "does not exist")
}
