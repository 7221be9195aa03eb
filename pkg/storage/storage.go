// Copyright 2022 The LVS Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// ConfigEnv stores system configuration.
type ConfigEnv struct {
	Port       string `yaml:"port"`
	FFmpegBin  string `yaml:"ffmpegBin"`
	FFprobeBin string `yaml:"ffprobeBin"`

	StorageDir string `yaml:"storageDir"`
	ConfigDir  string `yaml:"configDir"`
	MediaDir   string `yaml:"mediaDir"`

	// Art-Net controller address, "host:port".
	ArtnetAddress string `yaml:"artnetAddress"`
	PointSetFile  string `yaml:"pointSetFile"`

	FrameWidth  int     `yaml:"frameWidth"`
	FrameHeight int     `yaml:"frameHeight"`
	VideoFPS    float64 `yaml:"videoFPS"`
	ArtnetFPS   float64 `yaml:"artnetFPS"`

	AudioDevice string `yaml:"audioDevice"`
}

// NewConfigEnv return new environment configuration.
func NewConfigEnv(envPath string, envYAML []byte) (*ConfigEnv, error) {
	var env ConfigEnv
	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("could not unmarshal env.yaml: %w", err)
	}

	if env.Port == "" {
		env.Port = "2020"
	}
	if env.FFmpegBin == "" {
		env.FFmpegBin = "ffmpeg"
	}
	if env.FFprobeBin == "" {
		env.FFprobeBin = "ffprobe"
	}
	if env.ConfigDir == "" {
		env.ConfigDir = filepath.Join(filepath.Dir(envPath), "configs")
	}
	if env.StorageDir == "" {
		env.StorageDir = filepath.Join(filepath.Dir(envPath), "storage")
	}
	if env.ArtnetAddress == "" {
		env.ArtnetAddress = "255.255.255.255:6454"
	}
	if env.FrameWidth == 0 {
		env.FrameWidth = 640
	}
	if env.FrameHeight == 0 {
		env.FrameHeight = 360
	}
	if env.VideoFPS == 0 {
		env.VideoFPS = 30
	}
	if env.ArtnetFPS == 0 {
		env.ArtnetFPS = 30
	}
	if env.AudioDevice == "" {
		env.AudioDevice = "microphone"
	}

	var err error
	env.StorageDir, err = filepath.Abs(env.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of storageDir: %w", err)
	}
	env.ConfigDir, err = filepath.Abs(env.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of configDir: %w", err)
	}

	return &env, nil
}

// PrepareEnvironment creates the required directories.
func (env ConfigEnv) PrepareEnvironment() error {
	for _, dir := range []string{env.ConfigDir, env.StorageDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil && !os.IsExist(err) {
			return fmt.Errorf("could not create directory: %v: %w", dir, err)
		}
	}
	return nil
}

// SessionPath path of the session snapshot document.
func (env ConfigEnv) SessionPath() string {
	return filepath.Join(env.ConfigDir, "session.json")
}

// LogDBPath path of the log database.
func (env ConfigEnv) LogDBPath() string {
	return filepath.Join(env.StorageDir, "logs.db")
}

// UsersPath path of the account file.
func (env ConfigEnv) UsersPath() string {
	return filepath.Join(env.ConfigDir, "users.json")
}
