package main

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	sbapi "github.com/efinauri/shadowbuilder/pkg/shadowbuilder"
)

// loadRunRequestFromConfig reads a run request from JSON. Absent keys keep
// their zero value so the client defaults apply.
func loadRunRequestFromConfig(path string) (sbapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sbapi.RunRequest{}, err
	}
	if !gjson.ValidBytes(data) {
		return sbapi.RunRequest{}, fmt.Errorf("run config %s is not valid json", path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return sbapi.RunRequest{}, fmt.Errorf("run config %s must be a json object", path)
	}

	var req sbapi.RunRequest
	req.RunID = root.Get("run_id").String()
	req.ResumeFrom = root.Get("resume_from").String()
	req.CatalogPath = root.Get("catalog").String()
	req.Craft = root.Get("craft").String()
	req.Format = root.Get("format").String()
	req.Selection = root.Get("selection").String()

	if tags := root.Get("tags"); tags.Exists() {
		if !tags.IsArray() {
			return sbapi.RunRequest{}, fmt.Errorf("tags must be an array")
		}
		for _, tag := range tags.Array() {
			req.Tags = append(req.Tags, tag.String())
		}
	}
	if curve := root.Get("ideal_curve"); curve.Exists() {
		if !curve.IsArray() {
			return sbapi.RunRequest{}, fmt.Errorf("ideal_curve must be an array")
		}
		for _, bucket := range curve.Array() {
			if bucket.Type != gjson.Number {
				return sbapi.RunRequest{}, fmt.Errorf("ideal_curve entries must be numbers, got %q", bucket.Raw)
			}
			req.IdealCurve = append(req.IdealCurve, bucket.Float())
		}
	}

	ints := map[string]*int{
		"target_size":        &req.TargetSize,
		"max_copies":         &req.MaxCopies,
		"consistency_offset": &req.ConsistencyOffset,
		"population":         &req.Population,
		"max_generations":    &req.MaxGenerations,
		"temperature.start":  &req.TemperatureStart,
		"temperature.min":    &req.TemperatureMin,
	}
	for key, dst := range ints {
		if err := readNumber(root, key, func(v gjson.Result) { *dst = int(v.Int()) }); err != nil {
			return sbapi.RunRequest{}, err
		}
	}
	floats := map[string]*float64{
		"target_fitness":        &req.TargetFitness,
		"weights.curve":         &req.Weights.Curve,
		"weights.tags":          &req.Weights.Tags,
		"weights.consistency":   &req.Weights.Consistency,
		"temperature.annealing": &req.TemperatureAnnealing,
		"cull.base":             &req.CullBase,
		"cull.annealing":        &req.CullAnnealing,
		"cull.cap":              &req.CullCap,
	}
	for key, dst := range floats {
		if err := readNumber(root, key, func(v gjson.Result) { *dst = v.Float() }); err != nil {
			return sbapi.RunRequest{}, err
		}
	}
	if err := readNumber(root, "seed", func(v gjson.Result) { req.Seed = v.Int() }); err != nil {
		return sbapi.RunRequest{}, err
	}
	return req, nil
}

func readNumber(root gjson.Result, key string, set func(gjson.Result)) error {
	v := root.Get(key)
	if !v.Exists() {
		return nil
	}
	if v.Type != gjson.Number {
		return fmt.Errorf("%s must be a number, got %q", key, v.Raw)
	}
	set(v)
	return nil
}
