// Package domain contains core domain types for the PressAssist application.
package domain

// PressModel identifies a supported press model.
type PressModel string

// ModelTruepressJET520HDPlus is the only model supported by this build.
const ModelTruepressJET520HDPlus PressModel = "Truepress JET 520HD+"

// PressProfile is the identity and metadata of a connected press.
// Created by the identity resolver at connect time and immutable afterwards.
type PressProfile struct {
	SerialNumber string     `json:"serialNumber"`
	Model        PressModel `json:"model"`
	InstallDate  string     `json:"installDate,omitempty"`
}
