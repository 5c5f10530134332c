package api

import (
	"fmt"

	"dispacio/internal/model"
)

const (
	maxStops       = 2000
	maxTimeLimitMs = 120000
)

func validateStops(stops []model.Stop) error {
	if len(stops) > maxStops {
		return fmt.Errorf("too many stops: %d (max %d)", len(stops), maxStops)
	}
	seen := make(map[string]struct{}, len(stops))
	for i, s := range stops {
		if s.ID == "" {
			return fmt.Errorf("stops[%d]: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate stop id: %s", s.ID)
		}
		seen[s.ID] = struct{}{}
		if (s.Weight != nil && *s.Weight < 0) || (s.Volume != nil && *s.Volume < 0) {
			return fmt.Errorf("stop %s: weight and volume must be >= 0", s.ID)
		}
	}
	return nil
}

func validatePlanLimits(vehicle model.VehicleCapacity, timeLimitMs int) error {
	if timeLimitMs < 0 || timeLimitMs > maxTimeLimitMs {
		return fmt.Errorf("timeLimitMs must be in [0,%d]", maxTimeLimitMs)
	}
	if (vehicle.MaxWeight != nil && *vehicle.MaxWeight < 0) || (vehicle.MaxVolume != nil && *vehicle.MaxVolume < 0) {
		return fmt.Errorf("vehicle capacity must be >= 0")
	}
	return nil
}

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if err := validateStops(req.Stops); err != nil {
		return err
	}
	if req.Depot != nil && !req.Depot.Valid() {
		return fmt.Errorf("depot is not a valid coordinate")
	}
	return validatePlanLimits(req.Vehicle, req.TimeLimitMs)
}

func validateClusterRequest(req *model.ClusterRequest) error {
	if err := validateStops(req.Stops); err != nil {
		return err
	}
	if req.MergeRadiusPx != nil && *req.MergeRadiusPx <= 0 {
		return fmt.Errorf("mergeRadiusPx must be > 0")
	}
	if req.MinPointsPerCluster != nil && *req.MinPointsPerCluster < 1 {
		return fmt.Errorf("minPointsPerCluster must be >= 1")
	}
	return nil
}

func validateZoneOptimizeRequest(req *model.ZoneOptimizeRequest) error {
	if err := validateClusterRequest(&req.ClusterRequest); err != nil {
		return err
	}
	if req.Depot != nil && !req.Depot.Valid() {
		return fmt.Errorf("depot is not a valid coordinate")
	}
	return validatePlanLimits(req.Vehicle, req.TimeLimitMs)
}
