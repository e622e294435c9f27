package filters

import (
	"strings"

	"github.com/mamadbah2/wacloud/pkg/update"
)

func messageOfType(u update.Update, types ...update.MessageType) (*update.Message, bool) {
	m, ok := u.(*update.Message)
	if !ok {
		return nil, false
	}
	for _, t := range types {
		if m.Type == t {
			return m, true
		}
	}
	return nil, false
}

func mediaFilter(match func(*update.Message, *update.Media) bool) Filter {
	return func(u update.Update) bool {
		m, ok := u.(*update.Message)
		if !ok {
			return false
		}
		media := m.Media()
		return media != nil && match(m, media)
	}
}

// Media matches every media message.
func Media(u update.Update) bool {
	m, ok := u.(*update.Message)
	return ok && m.HasMedia()
}

// MediaMimeTypes matches media messages with one of the mime types.
func MediaMimeTypes(mimeTypes ...string) Filter {
	return mediaFilter(func(_ *update.Message, media *update.Media) bool {
		for _, mt := range mimeTypes {
			if strings.EqualFold(media.MimeType, mt) {
				return true
			}
		}
		return false
	})
}

// MediaExtensions matches media messages with one of the file extensions, e.g. ".pdf".
func MediaExtensions(extensions ...string) Filter {
	return mediaFilter(func(_ *update.Message, media *update.Media) bool {
		ext := media.Extension()
		for _, e := range extensions {
			if strings.EqualFold(ext, e) {
				return true
			}
		}
		return false
	})
}

// HasCaption matches image, video and document messages with a caption.
func HasCaption(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeImage, update.MessageTypeVideo, update.MessageTypeDocument)
	return ok && m.Caption() != ""
}

func Image(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeImage)
	return ok && m.Image != nil
}

func Video(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeVideo)
	return ok && m.Video != nil
}

func Document(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeDocument)
	return ok && m.Document != nil
}

// Audio matches voice notes and audio files.
func Audio(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeAudio)
	return ok && m.Audio != nil
}

// Voice matches voice notes.
func Voice(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeAudio)
	return ok && m.Audio != nil && m.Audio.Voice
}

// AudioFile matches audio messages that are not voice notes.
func AudioFile(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeAudio)
	return ok && m.Audio != nil && !m.Audio.Voice
}

func Sticker(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeSticker)
	return ok && m.Sticker != nil
}

func AnimatedSticker(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeSticker)
	return ok && m.Sticker != nil && m.Sticker.Animated
}

func StaticSticker(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeSticker)
	return ok && m.Sticker != nil && !m.Sticker.Animated
}
