package model

import (
    "time"

    "dispacio/internal/geo"
)

// Core domain and wire types shared by the planner, store and API.

// Stop is a delivery stop. Lat/Lng are optional; a stop without usable
// coordinates can be zoned (as unassigned) but never optimized.
type Stop struct {
    ID     string   `json:"id"`
    Lat    *float64 `json:"lat,omitempty"`
    Lng    *float64 `json:"lng,omitempty"`
    Weight *float64 `json:"weight,omitempty"`
    Volume *float64 `json:"volume,omitempty"`
    Rank   *int     `json:"rank,omitempty"`
}

// Point returns the stop's coordinate and whether it is usable.
func (s Stop) Point() (geo.Point, bool) {
    if s.Lat == nil || s.Lng == nil { return geo.Point{}, false }
    p := geo.Point{Lat: *s.Lat, Lng: *s.Lng}
    return p, p.Valid()
}

// VehicleCapacity limits the total demand of one route.
type VehicleCapacity struct {
    MaxWeight *float64 `json:"maxWeight,omitempty"`
    MaxVolume *float64 `json:"maxVolume,omitempty"`
}

type OptimizeRequest struct {
    TenantID    string          `json:"tenantId,omitempty"`
    ZoneID      string          `json:"zoneId,omitempty"`
    DriverID    string          `json:"driverId,omitempty"`
    Stops       []Stop          `json:"stops"`
    Vehicle     VehicleCapacity `json:"vehicle"`
    Depot       *geo.Point      `json:"depot,omitempty"`
    TimeLimitMs int             `json:"timeLimitMs,omitempty"`
}

type ClusterRequest struct {
    TenantID            string   `json:"tenantId,omitempty"`
    Stops               []Stop   `json:"stops"`
    MergeRadiusPx       *float64 `json:"mergeRadiusPx,omitempty"`
    MinPointsPerCluster *int     `json:"minPointsPerCluster,omitempty"`
}

// ZoneOptimizeRequest clusters stops and optimizes every spatial zone.
type ZoneOptimizeRequest struct {
    ClusterRequest
    Vehicle     VehicleCapacity `json:"vehicle"`
    Depot       *geo.Point      `json:"depot,omitempty"`
    TimeLimitMs int             `json:"timeLimitMs,omitempty"`
}

type Zone struct {
    BatchID       string     `json:"batchId,omitempty"`
    Label         string     `json:"zoneLabel"`
    Center        *geo.Point `json:"center"`
    MemberStopIDs []string   `json:"memberStopIds"`
    Count         int        `json:"count"`
    Zoom          int        `json:"zoom"`
    CreatedAt     time.Time  `json:"createdAt"`
}

type Route struct {
    ID                   string      `json:"id"`
    ZoneID               string      `json:"zoneId,omitempty"`
    DriverID             string      `json:"driverId,omitempty"`
    Engine               string      `json:"engine,omitempty"`
    TotalDistanceKm      float64     `json:"totalDistanceKm"`
    TotalDurationSeconds int64       `json:"totalDurationSeconds"`
    Stops                []RouteStop `json:"stops"`
    CreatedAt            time.Time   `json:"createdAt"`
}

type RouteStop struct {
    ID                 string  `json:"id"`
    Rank               int     `json:"rank"`
    DistanceFromPrevKm float64 `json:"distanceFromPrevKm"`
}

// ZoneResult is the outcome of optimizing one zone in a batch.
type ZoneResult struct {
    Zone  Zone   `json:"zone"`
    Route *Route `json:"route,omitempty"`
    Error string `json:"error,omitempty"`
    Kind  string `json:"errorKind,omitempty"`
}

type PlanMetrics struct {
    RunDate   string         `json:"runDate"`
    Engine    string         `json:"engine"`
    Metrics   map[string]any `json:"metrics"`
    CreatedAt time.Time      `json:"createdAt"`
}
