// Package designplugin reads customer design sessions from the Qstomizer
// product customizer and turns them into per-side print and mock images.
package designplugin
