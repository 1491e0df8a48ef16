package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func newBufferLogger(name string) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := NewBlankLogger(name)
	logger.AddAppender(NewWriterAppender(buf))
	return logger, buf
}

// splitLine returns the tab separated parts of the next log line.
func splitLine(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	line, err := buf.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	return strings.Split(strings.TrimSuffix(line, "\n"), "\t")
}

func TestConsoleFormat(t *testing.T) {
	logger, buf := newBufferLogger("loader")

	logger.Info("loading parts w.r.t world")
	parts := splitLine(t, buf)
	test.That(t, parts, test.ShouldHaveLength, 5)
	test.That(t, len(parts[0]), test.ShouldEqual, len("2024-01-02T15:04:05.000Z"))
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "loader")
	test.That(t, parts[3], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "loading parts w.r.t world")

	logger.Warnf("scene %06d", 3)
	parts = splitLine(t, buf)
	test.That(t, parts[1], test.ShouldEqual, "WARN")
	test.That(t, parts[4], test.ShouldEqual, "scene 000003")
}

func TestStructuredFields(t *testing.T) {
	logger, buf := newBufferLogger("")

	logger.Infow("saved", "path", "/data/real_jaigo", "scenes", 2, "dangling")
	parts := splitLine(t, buf)
	// no logger name
	test.That(t, parts, test.ShouldHaveLength, 5)
	test.That(t, parts[3], test.ShouldEqual, "saved")

	fields := map[string]interface{}{}
	test.That(t, json.Unmarshal([]byte(parts[4]), &fields), test.ShouldBeNil)
	test.That(t, fields["path"], test.ShouldEqual, "/data/real_jaigo")
	test.That(t, fields["scenes"], test.ShouldEqual, 2.)
	test.That(t, fields["dangling"], test.ShouldEqual, "unpaired log key")
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger("x")
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	logger.Debug("hidden")
	logger.Info("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Error("shown")
	parts := splitLine(t, buf)
	test.That(t, parts[1], test.ShouldEqual, "ERROR")
}

func TestSublogger(t *testing.T) {
	logger, buf := newBufferLogger("labeler")
	sub := logger.Sublogger("saver")
	sub.Debugw("wrote", "file", "scene_gt.json")

	parts := splitLine(t, buf)
	test.That(t, parts[2], test.ShouldEqual, "labeler.saver")
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Warnw("degenerate transform", "scene", "000001")
	logger.Info("fine")

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	test.That(t, warnings, test.ShouldHaveLength, 1)
	test.That(t, warnings[0].Message, test.ShouldEqual, "degenerate transform")
	test.That(t, warnings[0].ContextMap()["scene"], test.ShouldEqual, "000001")
	test.That(t, logs.FilterMessage("fine").Len(), test.ShouldEqual, 1)
}

func TestLevelParsing(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	test.That(t, json.Unmarshal([]byte(`"loud"`), &level), test.ShouldNotBeNil)
	test.That(t, json.Unmarshal([]byte(`2`), &level), test.ShouldNotBeNil)
}
