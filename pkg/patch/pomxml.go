package patch

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	groupIDRe    = regexp.MustCompile(`<groupId>\s*([^<]+?)\s*</groupId>`)
	artifactIDRe = regexp.MustCompile(`<artifactId>\s*([^<]+?)\s*</artifactId>`)
	versionRe    = regexp.MustCompile(`<version>\s*([^<]+?)\s*</version>`)
	artifactEndRe = regexp.MustCompile(`</artifactId>`)
)

func pomXMLPinDependencyVersion(content, groupID, artifactID, version string) (string, error) {
	return pomXMLPinBlockVersion(content, "dependency", groupID, artifactID, version)
}

func pomXMLPinPluginVersion(content, groupID, artifactID, version string) (string, error) {
	return pomXMLPinBlockVersion(content, "plugin", groupID, artifactID, version)
}

// pomXMLPinBlockVersion finds the <dependency> or <plugin> block matching
// groupID+artifactID and pins its <version>, inserting one right after
// </artifactId> if absent. Splits the document on the opening tag so each
// block's closing tag is found independently, mirroring the original's
// regex-segment approach.
func pomXMLPinBlockVersion(content, tag, groupID, artifactID, version string) (string, error) {
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	segments := strings.Split(content, openTag)
	if len(segments) < 2 {
		return "", fmt.Errorf("pom.xml has no <%s> blocks", tag)
	}

	found := false
	for i := 1; i < len(segments); i++ {
		closeIdx := strings.Index(segments[i], closeTag)
		if closeIdx < 0 {
			continue
		}
		block := segments[i][:closeIdx]
		rest := segments[i][closeIdx:]

		gm := groupIDRe.FindStringSubmatch(block)
		am := artifactIDRe.FindStringSubmatch(block)
		if gm == nil || am == nil || gm[1] != groupID || am[1] != artifactID {
			continue
		}

		if vm := versionRe.FindStringSubmatchIndex(block); vm != nil {
			block = block[:vm[2]] + version + block[vm[3]:]
		} else if loc := artifactEndRe.FindStringIndex(block); loc != nil {
			block = block[:loc[1]] + "\n        <version>" + version + "</version>" + block[loc[1]:]
		} else {
			continue
		}

		segments[i] = block + rest
		found = true
		break
	}

	if !found {
		return "", fmt.Errorf("pom.xml has no <%s> matching %s:%s", tag, groupID, artifactID)
	}

	return strings.Join(segments, openTag), nil
}
