package utils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	elapsed, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 190*time.Millisecond)
	test.That(t, elapsed, test.ShouldBeGreaterThan, 90*time.Millisecond)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	elapsed, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad")
	test.That(t, elapsed, test.ShouldBeLessThan, 90*time.Millisecond)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMapInParallel(t *testing.T) {
	square := func(ctx context.Context, x int) (int, error) {
		if x < 0 {
			return 0, errors.New("negative")
		}
		return x * x, nil
	}

	res, err := MapInParallel(context.Background(), []int{3, 1, 2}, square)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldResemble, []int{9, 1, 4})

	res, err = MapInParallel(context.Background(), []int{}, square)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldBeEmpty)

	_, err = MapInParallel(context.Background(), []int{1, -1}, square)
	test.That(t, err, test.ShouldBeError, errors.New("negative"))
}

func TestSafeJoinDir(t *testing.T) {
	joined, err := SafeJoinDir("/data/real_jaigo", "000001")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, joined, test.ShouldEqual, "/data/real_jaigo/000001")

	for _, bad := range []string{"..", "../other", ".", "000001/../.."} {
		_, err := SafeJoinDir("/data/real_jaigo", bad)
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestIsInside(t *testing.T) {
	for _, tc := range []struct {
		dir, path string
		inside    bool
	}{
		{"/data", "/data", true},
		{"/data", "/data/merged", true},
		{"/data", "/data/../data/x", true},
		{"/data", "/dataset", false},
		{"/data", "/", false},
		{"/data/merged", "/data", false},
	} {
		inside, err := IsInside(tc.dir, tc.path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, inside, test.ShouldEqual, tc.inside)
	}
}

func TestRemoveFileNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene_gt.json")
	test.That(t, os.WriteFile(path, []byte("{}"), 0o644), test.ShouldBeNil)

	RemoveFileNoError(path)
	_, err := os.Stat(path)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	RemoveFileNoError(path)
}
