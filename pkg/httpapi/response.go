package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/1F47E/geo-region-index/pkg/models"
)

// Response codes carried in the body next to the HTTP status.
const (
	CodeOK           = 0
	CodeMissingParam = 1001
	CodeInvalidParam = 1002
	CodeOutOfRange   = 1003
	CodeNotFound     = 1404
	CodeRateLimited  = 1429
	CodeInternal     = 1500
	CodeNotLoaded    = 1503
)

// Response is the envelope every JSON endpoint returns.
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}

func ok[T any](data *T) Response[T] {
	return Response[T]{Code: CodeOK, Message: "OK", Data: data}
}

func fail(code int, msg string) Response[struct{}] {
	return Response[struct{}]{Code: code, Message: msg}
}

// ReverseData is the flat view of a resolved chain, plus the chain itself.
type ReverseData struct {
	FormatAddress string                    `json:"formatAddress"`
	Province      string                    `json:"province,omitempty"`
	ProvinceCode  string                    `json:"provinceCode,omitempty"`
	City          string                    `json:"city,omitempty"`
	CityCode      string                    `json:"cityCode,omitempty"`
	District      string                    `json:"district,omitempty"`
	DistrictCode  string                    `json:"districtCode,omitempty"`
	Adcode        string                    `json:"adcode"`
	Level         models.Level              `json:"level"`
	Regions       []models.RegionSummary    `json:"regions"`
	Warnings      []models.AmbiguityWarning `json:"warnings,omitempty"`
}

func newReverseData(info *models.GeoInfo) *ReverseData {
	d := &ReverseData{
		FormatAddress: info.FormatAddress(),
		Adcode:        info.Adcode(),
		Regions:       info.Regions,
		Warnings:      info.Warnings,
	}
	if deepest, found := info.Deepest(); found {
		d.Level = deepest.Level
	}
	for _, r := range info.Regions {
		switch r.Level {
		case models.Province:
			d.Province, d.ProvinceCode = r.Name, r.Code
		case models.City:
			d.City, d.CityCode = r.Name, r.Code
		case models.District:
			d.District, d.DistrictCode = r.Name, r.Code
		}
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
