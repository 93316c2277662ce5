// Package script holds the scripted content of a conversation as data.
//
// A Script maps every stage to an ordered list of steps: Wait, Indicator,
// SendText and SendMedia. Script files are YAML or TOML, keyed by stage name:
//
//	stages:
//	  initial:
//	    - indicator: typing
//	    - wait: typing
//	    - text: "Hi, thanks for reaching out!"
//	    - media: intro.ogg
//	      voice: true
//
// A wait names a configured delay or gives a literal duration. Every stage
// except the pass-through stage needs at least one step, and the pass-through
// stage must have none.
package script
