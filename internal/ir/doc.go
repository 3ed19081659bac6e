// Package ir provides the value and schema types shared by every other
// package in soqlkit.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - IRValue is sealed: literal rendering can switch over a closed set
//   - Numbers are IRInt or IRDecimal, never float64
//   - Remote records keep their metadata envelope out of Fields
//   - Every Entity lists the Id field first, typed as string
package ir
