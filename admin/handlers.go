package admin

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
)

type RedisStatus struct {
	Backend     string    `json:"backend"`
	Endpoint    string    `json:"endpoint,omitempty"`
	Breaker     string    `json:"breaker,omitempty"`
	IsConnected bool      `json:"isConnected"`
	KeysCount   int64     `json:"keysCount"`
	SampleKeys  []string  `json:"sampleKeys"`
	CollectedAt time.Time `json:"collectedAt"`
}

type WarmupResult struct {
	Message     string `json:"message"`
	LocalKeys   int    `json:"localKeys"`
	WarmedTasks int    `json:"warmedTasks"`
}

type Dashboard struct {
	Cache struct {
		HitRatio      float64 `json:"hitRatio"`
		TotalRequests int64   `json:"totalRequests"`
		TotalKeys     int     `json:"totalKeys"`
	} `json:"cache"`
	System struct {
		MemoryUsageMB uint64  `json:"memoryUsageMB"`
		CPUTimeMs     float64 `json:"cpuTimeMs"`
		ThreadCount   int32   `json:"threadCount"`
		UptimeHours   float64 `json:"uptimeHours"`
	} `json:"system"`
	Redis struct {
		IsConnected bool  `json:"isConnected"`
		KeysCount   int64 `json:"keysCount"`
	} `json:"redis"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type Threads struct {
	Goroutines     int       `json:"goroutines"`
	MaxProcs       int       `json:"maxProcs"`
	ProcessorCount int       `json:"processorCount"`
	OSThreads      int32     `json:"osThreadCount"`
	CollectedAt    time.Time `json:"collectedAt"`
}

type Health struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Backend   string    `json:"backend"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Health{
		Status:    "Healthy",
		Version:   s.version,
		Backend:   s.dist.Backend(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) cacheStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.local.Statistics())
}

func (s *Server) cacheKeys(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.local.KeyInfos())
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	s.local.Clear()
	s.dist.Clear(r.Context())
	s.logger.Info("cache cleared by admin request")
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Cache cleared successfully"})
}

func (s *Server) clearCacheByPrefix(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	local := s.local.RemoveByPrefix(prefix)
	dist := s.dist.RemoveByPattern(r.Context(), prefix+"*")
	s.logger.Info("cache cleared for prefix %s by admin request (local=%d distributed=%d)", prefix, local, dist)
	s.writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Cache cleared for prefix '%s' successfully", prefix)})
}

func (s *Server) warmUp(w http.ResponseWriter, r *http.Request) {
	res := WarmupResult{Message: "Cache warmup initiated successfully"}
	res.LocalKeys = s.local.WarmUp(r.Context())
	if s.warmer != nil {
		res.WarmedTasks = s.warmer.RunOnce(r.Context())
	}
	s.logger.Info("cache warmup triggered by admin request")
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) redisStatus(r *http.Request) RedisStatus {
	ctx := r.Context()
	keys := s.dist.Keys(ctx, "*")
	if len(keys) > sampleKeys {
		keys = keys[:sampleKeys]
	}
	status := RedisStatus{
		Backend:     s.dist.Backend(),
		IsConnected: s.dist.IsConnected(ctx),
		KeysCount:   s.dist.KeysCount(ctx),
		SampleKeys:  keys,
		CollectedAt: time.Now().UTC(),
	}
	if conn := s.dist.Connector(); conn != nil {
		status.Endpoint = conn.Endpoint()
		status.Breaker = conn.State()
	}
	return status
}

func (s *Server) redis(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.redisStatus(r))
}

func (s *Server) system(w http.ResponseWriter, r *http.Request) {
	m, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.internalError(w, r, "getting system metrics", err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) memory(w http.ResponseWriter, r *http.Request) {
	m, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.internalError(w, r, "getting memory usage", err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		MemoryMetrics
		CollectedAt time.Time `json:"collectedAt"`
	}{m.Memory, m.CollectedAt})
}

func (s *Server) gcInfo(w http.ResponseWriter, r *http.Request) {
	m, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.internalError(w, r, "getting garbage collection info", err)
		return
	}
	s.writeJSON(w, http.StatusOK, m.GC)
}

func (s *Server) threads(w http.ResponseWriter, r *http.Request) {
	m, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.internalError(w, r, "getting thread info", err)
		return
	}
	s.writeJSON(w, http.StatusOK, Threads{
		Goroutines:     runtime.NumGoroutine(),
		MaxProcs:       runtime.GOMAXPROCS(0),
		ProcessorCount: m.CPU.ProcessorCount,
		OSThreads:      m.Threads,
		CollectedAt:    m.CollectedAt,
	})
}

func (s *Server) gc(w http.ResponseWriter, r *http.Request) {
	res := forceGC()
	s.logger.Info("garbage collection forced by admin request, freed %dMB", res.FreedMB)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	m, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.internalError(w, r, "getting performance dashboard", err)
		return
	}
	stats := s.local.Statistics()
	var d Dashboard
	d.Cache.HitRatio = stats.HitRatio
	d.Cache.TotalRequests = stats.TotalRequests
	d.Cache.TotalKeys = stats.TotalKeys
	d.System.MemoryUsageMB = m.Memory.HeapAllocMB
	d.System.CPUTimeMs = m.CPU.TotalMs
	d.System.ThreadCount = m.Threads
	d.System.UptimeHours = m.UptimeHours
	d.Redis.IsConnected = s.dist.IsConnected(r.Context())
	d.Redis.KeysCount = s.dist.KeysCount(r.Context())
	d.LastUpdated = time.Now().UTC()
	s.writeJSON(w, http.StatusOK, d)
}
