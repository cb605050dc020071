package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrAlreadyRunning indicates the chat view is open in another terminal.
var ErrAlreadyRunning = errors.New("the chat view is already open in another terminal")

// LockInfo identifies the process holding the chat view.
type LockInfo struct {
	PID       int       `json:"pid"`
	ChannelID string    `json:"channel_id"`
	StartedAt time.Time `json:"started_at"`
}

// HeldError reports the live holder of the chat lock.
type HeldError struct {
	Holder LockInfo
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%v (PID %d, channel %s, since %s)",
		ErrAlreadyRunning, e.Holder.PID, e.Holder.ChannelID, e.Holder.StartedAt.Local().Format(time.Kitchen))
}

func (e *HeldError) Is(target error) bool { return target == ErrAlreadyRunning }

// ChatLock is this process's claim on the chat view.
type ChatLock struct {
	path string
	info LockInfo
}

// LockFilePath returns the path to the chat lock file.
func LockFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".komun-chat.lock"), nil
}

// AcquireChatLock claims the chat view for channelID. A lock left by a
// dead process is reclaimed; a live holder yields a *HeldError unless
// force is set.
func AcquireChatLock(channelID string, force bool) (*ChatLock, error) {
	path, err := LockFilePath()
	if err != nil {
		return nil, err
	}
	l := &ChatLock{path: path, info: LockInfo{PID: os.Getpid(), ChannelID: channelID, StartedAt: time.Now()}}

	for attempt := 0; attempt < 2; attempt++ {
		err := l.create()
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}

		holder, readErr := readLock(path)
		if readErr == nil && !force && processAlive(holder.PID) {
			return nil, &HeldError{Holder: *holder}
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: lock file keeps reappearing", ErrAlreadyRunning)
}

// Info describes the claim.
func (l *ChatLock) Info() LockInfo { return l.info }

// Release removes the lock file if it still belongs to this claim.
func (l *ChatLock) Release() error {
	holder, err := readLock(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if holder.PID != l.info.PID || holder.ChannelID != l.info.ChannelID || !holder.StartedAt.Equal(l.info.StartedAt) {
		return nil
	}
	return os.Remove(l.path)
}

// CurrentHolder returns the live holder of the chat view, or nil.
func CurrentHolder() (*LockInfo, error) {
	path, err := LockFilePath()
	if err != nil {
		return nil, err
	}
	holder, err := readLock(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil || !processAlive(holder.PID) {
		return nil, nil
	}
	return holder, nil
}

func (l *ChatLock) create() error {
	data, err := json.Marshal(l.info)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(l.path)
		return err
	}
	return f.Close()
}

func readLock(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt lock file %s: %w", path, err)
	}
	return &info, nil
}

// processAlive checks pid with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
