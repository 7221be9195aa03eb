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

package lvs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"lvs/pkg/artnet"
	"lvs/pkg/audio"
	"lvs/pkg/clip"
	"lvs/pkg/ffmpeg"
	"lvs/pkg/log"
	"lvs/pkg/modulation"
	"lvs/pkg/player"
	"lvs/pkg/source"
	"lvs/pkg/storage"
	"lvs/pkg/system"
	"lvs/pkg/web"
	"lvs/pkg/web/auth"
)

// Run starts the server and blocks until SIGINT/SIGTERM.
func Run(envPath string) error {
	app, err := newApp(envPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	fatal := make(chan error, 1)
	go func() { fatal <- app.run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-fatal:
	case signal := <-stop:
		app.log.Info().Src("app").Msgf("received %v, stopping", signal)
		err = nil
	}

	if saveErr := app.saveSession(); saveErr != nil {
		app.log.Error().Src("app").Msgf("could not save session: %v", saveErr)
	}

	app.manager.StopAll()
	app.analyzer.Stop()

	cancel()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()

	if err := app.server.Shutdown(ctx2); err != nil {
		return err
	}
	app.wg.Wait()
	return err
}

type app struct {
	log      *log.Logger
	logDB    *log.DB
	env      *storage.ConfigEnv
	registry *clip.Registry
	analyzer *audio.Analyzer
	engine   *modulation.Engine
	manager  *player.Manager
	stage    *artnet.Stage
	system   *system.System
	server   *http.Server
	wg       *sync.WaitGroup
}

func newApp(envPath string) (*app, error) { //nolint:funlen
	wg := &sync.WaitGroup{}
	logger := log.NewLogger(wg)

	envYAML, err := os.ReadFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("could not read env.yaml: %w", err)
	}

	env, err := storage.NewConfigEnv(envPath, envYAML)
	if err != nil {
		return nil, fmt.Errorf("could not get environment config: %w", err)
	}

	logDB := log.NewDB(env.LogDBPath(), wg)

	defaultEffects := map[string][]string{
		player.IDVideo:  {"brightness"},
		player.IDArtnet: {"brightness"},
	}
	registry := clip.NewRegistry(defaultEffects)

	cache := audio.NewFeatureCache()
	analyzer := audio.NewAnalyzer(cache, logger)
	engine := modulation.NewEngine(registry, cache, logger)

	newSource := newSourceFactory(env, logger)

	videoPlayer := player.New(player.Config{
		ID:           player.IDVideo,
		Width:        env.FrameWidth,
		Height:       env.FrameHeight,
		FPSCap:       env.VideoFPS,
		LoopPlaylist: true,
	}, registry, newSource, logger)

	artnetPlayer := player.New(player.Config{
		ID:           player.IDArtnet,
		Width:        env.FrameWidth,
		Height:       env.FrameHeight,
		FPSCap:       env.ArtnetFPS,
		EnableArtnet: true,
		LoopPlaylist: true,
	}, registry, newSource, logger)

	manager := player.NewManager(registry, engine, videoPlayer, artnetPlayer, logger)

	sys := system.New(logger)

	stage, err := newArtnetStage(env, logger)
	if err != nil {
		// Fatal configuration faults leave the subsystem inactive,
		// everything else keeps running.
		logger.Error().Src("artnet").Msgf("stage disabled: %v", err)
		sys.SetSubsystem("artnet", system.StateError, err.Error())
	} else if stage != nil {
		artnetPlayer.SetOutput(stage.OutputFrame)
		sys.SetSubsystem("artnet", system.StateRunning, "")
	} else {
		sys.SetSubsystem("artnet", system.StateStopped, "")
	}

	a, err := auth.NewBasicAuthenticator(env.UsersPath(), logger)
	if err != nil {
		return nil, err
	}

	appState := &app{
		log:      logger,
		logDB:    logDB,
		env:      env,
		registry: registry,
		analyzer: analyzer,
		engine:   engine,
		manager:  manager,
		stage:    stage,
		system:   sys,
		wg:       wg,
	}

	mux := http.NewServeMux()

	mux.Handle("/preview", a.User(web.Preview(videoPlayer)))

	mux.Handle("/api/player/", a.User(web.PlayerAPI(manager, registry)))
	mux.Handle("/api/sequences", a.User(web.SequencesAPI(engine, registry, analyzer, cache)))
	mux.Handle("/api/sequences/", a.User(web.SequencesAPI(engine, registry, analyzer, cache)))
	mux.Handle("/api/sequences/audio/features/ws", a.User(web.AudioFeaturesWS(cache)))
	mux.Handle("/api/artnet/delta-encoding", a.Admin(web.DeltaEncoding(stage)))

	mux.Handle("/api/status", a.User(web.Status(func() interface{} {
		return sys.Status()
	})))
	mux.Handle("/api/logs", a.Admin(web.Logs(logger)))
	mux.Handle("/api/session/save", a.Admin(appState.sessionSaveHandler()))

	appState.server = &http.Server{Addr: ":" + env.Port, Handler: mux}

	return appState, nil
}

func (a *app) run(ctx context.Context) error {
	a.log.Start(ctx)
	go a.log.LogToStdout(ctx)
	time.Sleep(10 * time.Millisecond)
	a.log.Info().Src("app").Msg("starting..")

	if err := a.env.PrepareEnvironment(); err != nil {
		return fmt.Errorf("could not prepare environment: %w", err)
	}

	if err := a.logDB.Init(ctx); err != nil {
		a.log.Error().Src("app").Msgf("could not init log database: %v", err)
	} else {
		go a.logDB.SaveLogs(ctx, a.log)
	}

	if err := a.manager.StartAll(); err != nil {
		return fmt.Errorf("could not start players: %w", err)
	}
	a.system.SetSubsystem("players", system.StateRunning, "")

	if err := a.restoreSession(); err != nil {
		a.log.Error().Src("app").Msgf("could not restore session: %v", err)
	}

	modulationInterval := time.Second / 30
	go a.manager.RunModulation(ctx, modulationInterval)

	go a.system.StatusLoop(ctx)

	return a.server.ListenAndServe()
}

// restoreSession loads the session snapshot: clips into the registry,
// playlists onto the players, playback paused at index 0.
func (a *app) restoreSession() error {
	session, err := storage.LoadSession(a.env.SessionPath())
	if err != nil {
		return err
	}

	session.RestoreRegistry(a.registry)

	for id, snapshot := range session.Players {
		p, err := a.manager.Player(id)
		if err != nil {
			continue
		}
		p.SetPlaylist(snapshot.Playlist)
		if len(snapshot.Playlist) > 0 {
			if err := p.LoadClip(0); err != nil {
				a.log.Error().Src("app").Player(id).
					Msgf("could not load clip: %v", err)
				continue
			}
			p.Pause()
		}
	}

	if session.MasterPlaylist != "" {
		if err := a.manager.SetMaster(session.MasterPlaylist); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) saveSession() error {
	session := &storage.Session{
		Players:        map[string]storage.PlayerSnapshot{},
		Clips:          a.registry.List(),
		MasterPlaylist: a.manager.Master(),
	}
	for id, p := range a.manager.Players() {
		session.Players[id] = storage.PlayerSnapshot{
			Playlist:     p.Playlist(),
			CurrentIndex: p.CurrentIndex(),
			EnableArtnet: p.Config.EnableArtnet,
		}
	}
	return storage.SaveSession(a.env.SessionPath(), session)
}

func (a *app) sessionSaveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if err := a.saveSession(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// newSourceFactory builds frame sources from clip descriptors.
func newSourceFactory(env *storage.ConfigEnv, logger *log.Logger) player.SourceFactory {
	prober := ffmpeg.NewProber(env.FFprobeBin)

	return func(desc clip.SourceDescriptor, width, height int, fps float64) (source.Source, error) {
		switch desc.Kind {
		case clip.KindVideo:
			path := desc.AbsolutePath
			if path == "" {
				path = filepath.Join(env.MediaDir, desc.RelativePath)
			}
			logf := func(msg string) {
				logger.FFmpegLevel("error").Src("decoder").Msg(msg)
			}
			return source.NewVideo(path, env.FFmpegBin, prober.Probe, logf), nil

		case clip.KindGenerator:
			return source.NewGeneratorSource(desc.PluginID, desc.InitialParams, width, height, fps)
		}
		return nil, fmt.Errorf("unknown source kind: %v", desc.Kind)
	}
}

// newArtnetStage loads the point set and dials the controller. Returns
// nil when no point set is configured.
func newArtnetStage(env *storage.ConfigEnv, logger *log.Logger) (*artnet.Stage, error) {
	if env.PointSetFile == "" {
		return nil, nil
	}

	points, err := loadPointSet(env.PointSetFile)
	if err != nil {
		return nil, err
	}

	sender, err := artnet.NewUDPSender(env.ArtnetAddress)
	if err != nil {
		return nil, err
	}

	return artnet.NewStage(points, sender, artnet.DefaultConfig(), logger), nil
}

// loadPointSet reads a compiled cache directly, or parses the editor
// JSON and refreshes the cache next to it.
func loadPointSet(path string) (*artnet.PointSet, error) {
	if strings.HasSuffix(path, ".lvsp") {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("could not open point set: %w", err)
		}
		defer file.Close()
		return artnet.ReadCache(file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read point set: %w", err)
	}
	points, err := artnet.ParsePointSet(data)
	if err != nil {
		return nil, err
	}

	cache, err := os.Create(path + ".lvsp")
	if err == nil {
		artnet.WriteCache(cache, points) //nolint:errcheck
		cache.Close()
	}
	return points, nil
}
