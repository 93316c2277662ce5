// Package media resolves script media references to files on disk.
//
// The Library enforces two rules before anything is sent: the file must
// exist (ErrMediaNotFound) and must not exceed the configured size limit
// (ErrMediaTooLarge, 16 MiB by default). Each opened file is classified as
// audio, video, image or document so transports can build the right message.
package media
